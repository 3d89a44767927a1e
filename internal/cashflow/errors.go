package cashflow

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("cashflow: validation failed")
	// ErrDataSource matches every *DataSourceError.
	ErrDataSource = errors.New("cashflow: data source failure")
	// ErrNegativeAmount flags a source row carrying a negative amount.
	ErrNegativeAmount = errors.New("cashflow: negative amount")
)

// ValidationError reports rejected input before any query runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cashflow: invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataSourceError wraps a failure of one of the source queries.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("cashflow: %s source: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDataSource) succeed.
func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSource
}

func sourceError(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDataSource) || errors.Is(err, ErrValidation) {
		return err
	}
	return &DataSourceError{Source: source, Err: err}
}

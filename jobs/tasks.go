package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCashflowWarmup precomputes the current month report per active company.
	TaskCashflowWarmup = "cashflow:warmup"
	// TaskCashflowInvalidate bumps the report cache version.
	TaskCashflowInvalidate = "cashflow:invalidate"
)

// WarmupPayload narrows a warmup run. The zero value warms every company with
// ledger activity in the current month.
type WarmupPayload struct {
	CompanyIDs []string `json:"company_ids,omitempty"`
	// Month is YYYY-MM; empty means the current month.
	Month string `json:"month,omitempty"`
}

// InvalidatePayload records why the cache was dropped.
type InvalidatePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewWarmupTask constructs a warmup task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal warmup payload: %w", err)
	}
	return asynq.NewTask(TaskCashflowWarmup, data), nil
}

// NewInvalidateTask constructs an invalidation task.
func NewInvalidateTask(payload InvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invalidate payload: %w", err)
	}
	return asynq.NewTask(TaskCashflowInvalidate, data), nil
}

package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRow is a raw account_movements record.
type LedgerRow struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	AccountID    *uuid.UUID
	Kind         string
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	Status       *string
	MovementDate time.Time
	CreatedAt    time.Time
	Description  string
}

// InstallmentRow is a raw receivable or payable installment record.
type InstallmentRow struct {
	ID           uuid.UUID
	ParentID     uuid.UUID
	CompanyID    uuid.UUID
	AccountID    *uuid.UUID
	Number       int
	Amount       decimal.Decimal
	DueDate      time.Time
	PaymentDate  *time.Time
	ClearingDate *time.Time
	Status       *string
	Description  string
}

// InstallmentSide selects the receivable or payable tables.
type InstallmentSide string

const (
	SideReceivable InstallmentSide = "receivable"
	SidePayable    InstallmentSide = "payable"
)

// SourceQuery is the pre-filter pushed into SQL. Exact period filtering happens
// after date resolution.
type SourceQuery struct {
	CompanyID  uuid.UUID
	Period     Period
	AccountIDs []uuid.UUID
}

// StatusSum is a movement total grouped by raw status. Negative counts the
// rows of the group carrying a negative amount.
type StatusSum struct {
	Status   *string
	Net      decimal.Decimal
	Negative int64
}

// AccountRow is a bank account of a company.
type AccountRow struct {
	ID          uuid.UUID
	Description string
	AccountType string
}

// AccountStatusSum is a per-account movement total grouped by raw status.
type AccountStatusSum struct {
	AccountID uuid.UUID
	Status    *string
	Net       decimal.Decimal
	Negative  int64
}

// SourceRepository exposes the read-only queries behind the readers.
type SourceRepository interface {
	// LedgerMovements returns movements dated inside the period, excluding
	// those created by the receivable and payable subsystems.
	LedgerMovements(ctx context.Context, q SourceQuery) ([]LedgerRow, error)
	// Installments returns installments with any date column inside the period.
	Installments(ctx context.Context, side InstallmentSide, q SourceQuery) ([]InstallmentRow, error)
	// MovementTotalsBefore sums amount_in - amount_out of every movement dated
	// strictly before the given day, grouped by raw status.
	MovementTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]StatusSum, error)
	// Accounts lists the company's bank accounts.
	Accounts(ctx context.Context, companyID uuid.UUID, accountIDs []uuid.UUID) ([]AccountRow, error)
	// AccountTotalsBefore is MovementTotalsBefore split per account.
	AccountTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]AccountStatusSum, error)
}

// Reader produces unified events from one source.
type Reader interface {
	Source() string
	Read(ctx context.Context, p Params) ([]Event, error)
}

// LedgerReader reads direct account movements.
type LedgerReader struct {
	repo SourceRepository
}

// NewLedgerReader builds a LedgerReader.
func NewLedgerReader(repo SourceRepository) *LedgerReader {
	return &LedgerReader{repo: repo}
}

// Source names the reader in errors and logs.
func (r *LedgerReader) Source() string { return string(SourceLedger) }

// Read returns the period's ledger movements as events.
func (r *LedgerReader) Read(ctx context.Context, p Params) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Period = p.Period.Normalize()
	rows, err := r.repo.LedgerMovements(ctx, SourceQuery{CompanyID: p.CompanyID, Period: p.Period, AccountIDs: p.AccountIDs})
	if err != nil {
		return nil, sourceError(r.Source(), err)
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		if row.CompanyID != p.CompanyID {
			continue
		}
		event := ledgerEvent(row)
		if !p.Period.Contains(event.ResolvedDate) || !CountsForDisplay(event, p.StatusFilter) {
			continue
		}
		if row.AmountIn.IsNegative() || row.AmountOut.IsNegative() {
			return nil, sourceError(r.Source(), fmt.Errorf("movement %s: %w", row.ID, ErrNegativeAmount))
		}
		events = append(events, event)
	}
	return events, nil
}

func ledgerEvent(row LedgerRow) Event {
	day := truncateDay(row.MovementDate)
	stamp := day
	if !row.CreatedAt.IsZero() {
		c := row.CreatedAt.UTC()
		stamp = time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), time.UTC)
	}
	return Event{
		SourceKind:        SourceLedger,
		SourceID:          row.ID,
		ResolvedDate:      day,
		ResolvedTimestamp: stamp,
		CompanyID:         row.CompanyID,
		AccountID:         row.AccountID,
		AmountIn:          row.AmountIn,
		AmountOut:         row.AmountOut,
		Status:            CoerceStatus(row.Status),
		MovementKind:      movementKind(row.Kind, row.AmountIn, row.AmountOut),
		Description:       row.Description,
	}
}

func movementKind(raw string, in, out decimal.Decimal) MovementKind {
	switch MovementKind(raw) {
	case MovementInflow, MovementOutflow, MovementTransfer:
		return MovementKind(raw)
	}
	switch raw {
	case "entrada", "deposito":
		return MovementInflow
	case "saida", "saque":
		return MovementOutflow
	case "transferencia":
		return MovementTransfer
	}
	if out.IsPositive() && !in.IsPositive() {
		return MovementOutflow
	}
	return MovementInflow
}

// InstallmentReader reads receivable or payable installments.
type InstallmentReader struct {
	repo SourceRepository
	side InstallmentSide
}

// NewReceivableReader builds the accounts-receivable reader.
func NewReceivableReader(repo SourceRepository) *InstallmentReader {
	return &InstallmentReader{repo: repo, side: SideReceivable}
}

// NewPayableReader builds the accounts-payable reader.
func NewPayableReader(repo SourceRepository) *InstallmentReader {
	return &InstallmentReader{repo: repo, side: SidePayable}
}

// Source names the reader in errors and logs.
func (r *InstallmentReader) Source() string { return string(r.side) }

// Read returns installments whose resolved date falls inside the period.
func (r *InstallmentReader) Read(ctx context.Context, p Params) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Period = p.Period.Normalize()
	rows, err := r.repo.Installments(ctx, r.side, SourceQuery{CompanyID: p.CompanyID, Period: p.Period, AccountIDs: p.AccountIDs})
	if err != nil {
		return nil, sourceError(r.Source(), err)
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		if row.CompanyID != p.CompanyID {
			continue
		}
		event := r.event(row, p.ReportingMode)
		if !p.Period.Contains(event.ResolvedDate) || !CountsForDisplay(event, p.StatusFilter) {
			continue
		}
		if row.Amount.IsNegative() {
			return nil, sourceError(r.Source(), fmt.Errorf("installment %s: %w", row.ID, ErrNegativeAmount))
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *InstallmentReader) event(row InstallmentRow, mode ReportingMode) Event {
	status := CoerceStatus(row.Status)
	day := ResolveDate(mode, InstallmentDates{Due: row.DueDate, Payment: row.PaymentDate, Clearing: row.ClearingDate}, status)
	installmentID := row.ID
	event := Event{
		SourceID:          row.ParentID,
		InstallmentID:     &installmentID,
		ResolvedDate:      day,
		ResolvedTimestamp: day,
		CompanyID:         row.CompanyID,
		AccountID:         row.AccountID,
		AmountIn:          decimal.Zero,
		AmountOut:         decimal.Zero,
		Status:            status,
		Description:       row.Description,
	}
	amount := row.Amount
	if r.side == SideReceivable {
		event.SourceKind = SourceReceivable
		event.AmountIn = amount
	} else {
		event.SourceKind = SourcePayable
		event.AmountOut = amount
	}
	return event
}

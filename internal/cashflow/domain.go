package cashflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceKind identifies which subsystem produced an event.
type SourceKind string

const (
	SourceLedger     SourceKind = "ledger"
	SourceReceivable SourceKind = "receivable"
	SourcePayable    SourceKind = "payable"
)

// rank orders source kinds for the unifier tie-break.
func (k SourceKind) rank() int {
	switch k {
	case SourceLedger:
		return 0
	case SourceReceivable:
		return 1
	case SourcePayable:
		return 2
	default:
		return 3
	}
}

// Status is the settlement state of an event.
type Status string

const (
	StatusSettled Status = "settled"
	StatusPending Status = "pending"
)

// MovementKind classifies ledger movements. Installment events leave it empty.
type MovementKind string

const (
	MovementInflow   MovementKind = "inflow"
	MovementOutflow  MovementKind = "outflow"
	MovementTransfer MovementKind = "transfer"
)

// ReportingMode selects the business date used for installments.
type ReportingMode string

const (
	ModePaymentDate ReportingMode = "paymentDate"
	ModeDueDate     ReportingMode = "dueDate"
)

// StatusFilter restricts which events are reported.
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterSettled StatusFilter = "settled"
	FilterPending StatusFilter = "pending"
)

// Event is the unified movement record every reader produces.
type Event struct {
	SourceKind        SourceKind
	SourceID          uuid.UUID
	InstallmentID     *uuid.UUID
	ResolvedDate      time.Time
	ResolvedTimestamp time.Time
	CompanyID         uuid.UUID
	AccountID         *uuid.UUID
	AmountIn          decimal.Decimal
	AmountOut         decimal.Decimal
	Status            Status
	MovementKind      MovementKind
	Description       string
}

// Net returns AmountIn minus AmountOut.
func (e Event) Net() decimal.Decimal {
	return e.AmountIn.Sub(e.AmountOut)
}

// IsTransfer reports whether the event is a ledger transfer leg.
func (e Event) IsTransfer() bool {
	return e.SourceKind == SourceLedger && e.MovementKind == MovementTransfer
}

// DailyBucket aggregates the events of one calendar day. Variation is the
// day's balance movement under the balance policy, which may differ from
// the displayed receipts and payments.
type DailyBucket struct {
	Date           time.Time
	Receipts       decimal.Decimal
	Payments       decimal.Decimal
	TransfersIn    decimal.Decimal
	TransfersOut   decimal.Decimal
	Variation      decimal.Decimal
	RunningBalance decimal.Decimal
	EventCount     int
	Events         []Event
}

// Period is an inclusive calendar date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered by the period.
func (p Period) Days() int {
	return int(dayNumber(p.End)-dayNumber(p.Start)) + 1
}

// Normalize truncates both bounds to midnight UTC.
func (p Period) Normalize() Period {
	return Period{Start: truncateDay(p.Start), End: truncateDay(p.End)}
}

// Contains reports whether the calendar day of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d, n := truncateDay(t), p.Normalize()
	return !d.Before(n.Start) && !d.After(n.End)
}

// index returns the zero-based day offset of t from the period start.
func (p Period) index(t time.Time) int {
	return int(dayNumber(t) - dayNumber(p.Start))
}

// Params drives the readers and the unifier.
type Params struct {
	CompanyID     uuid.UUID
	Period        Period
	ReportingMode ReportingMode
	StatusFilter  StatusFilter
	AccountIDs    []uuid.UUID
}

// AppliedFilters echoes the filters used to build a report.
type AppliedFilters struct {
	ReportingMode   ReportingMode
	StatusFilter    StatusFilter
	IncludeBalances bool
	AccountIDs      []uuid.UUID
}

// AccountBalance is the derived balance of one bank account.
type AccountBalance struct {
	AccountID      uuid.UUID
	Description    string
	AccountType    string
	InitialBalance decimal.Decimal
	CurrentBalance decimal.Decimal
}

// Totals sums the per-day metrics of a report.
type Totals struct {
	Receipts        decimal.Decimal
	Payments        decimal.Decimal
	TransfersIn     decimal.Decimal
	TransfersOut    decimal.Decimal
	PeriodVariation decimal.Decimal
}

const (
	dateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayNumber counts days since the Unix epoch for the calendar day of t.
// Durations saturate after about 292 years so day arithmetic avoids them.
func dayNumber(t time.Time) int64 {
	return truncateDay(t).Unix() / secondsPerDay
}

package cashflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeRepo mimics the SQL of PostgresRepository over in-memory rows. Row
// queries ignore the company so the readers' own scoping is exercised.
type fakeRepo struct {
	mu sync.Mutex

	ledger      []LedgerRow
	settlements []LedgerRow // movements generated by receivable and payable settlements
	receivables []InstallmentRow
	payables    []InstallmentRow
	accounts    []AccountRow

	errs  map[string]error
	calls map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeRepo) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.errs[name]
}

func (f *fakeRepo) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepo) LedgerMovements(ctx context.Context, q SourceQuery) ([]LedgerRow, error) {
	if err := f.enter(ctx, "ledger"); err != nil {
		return nil, err
	}
	var out []LedgerRow
	for _, row := range f.ledger {
		if row.MovementDate.Before(q.Period.Start) || row.MovementDate.After(q.Period.End) {
			continue
		}
		if !accountMatches(row.AccountID, q.AccountIDs) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) Installments(ctx context.Context, side InstallmentSide, q SourceQuery) ([]InstallmentRow, error) {
	if err := f.enter(ctx, string(side)); err != nil {
		return nil, err
	}
	rows := f.receivables
	if side == SidePayable {
		rows = f.payables
	}
	var out []InstallmentRow
	for _, row := range rows {
		if !anyDateIn(q.Period, row.DueDate, row.PaymentDate, row.ClearingDate) {
			continue
		}
		if !accountMatches(row.AccountID, q.AccountIDs) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) MovementTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]StatusSum, error) {
	if err := f.enter(ctx, "totals"); err != nil {
		return nil, err
	}
	var out []StatusSum
	for _, row := range f.history(companyID, before, accountIDs) {
		out = append(out, StatusSum{Status: row.Status, Net: row.AmountIn.Sub(row.AmountOut), Negative: negativeRows(row)})
	}
	return out, nil
}

func (f *fakeRepo) Accounts(ctx context.Context, companyID uuid.UUID, accountIDs []uuid.UUID) ([]AccountRow, error) {
	if err := f.enter(ctx, "accounts"); err != nil {
		return nil, err
	}
	var out []AccountRow
	for _, account := range f.accounts {
		id := account.ID
		if accountMatches(&id, accountIDs) {
			out = append(out, account)
		}
	}
	return out, nil
}

func (f *fakeRepo) AccountTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]AccountStatusSum, error) {
	if err := f.enter(ctx, "account_totals"); err != nil {
		return nil, err
	}
	var out []AccountStatusSum
	for _, row := range f.history(companyID, before, accountIDs) {
		if row.AccountID == nil {
			continue
		}
		out = append(out, AccountStatusSum{AccountID: *row.AccountID, Status: row.Status, Net: row.AmountIn.Sub(row.AmountOut), Negative: negativeRows(row)})
	}
	return out, nil
}

func (f *fakeRepo) history(companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) []LedgerRow {
	var out []LedgerRow
	for _, rows := range [][]LedgerRow{f.ledger, f.settlements} {
		for _, row := range rows {
			if row.CompanyID != companyID || !row.MovementDate.Before(before) {
				continue
			}
			if !accountMatches(row.AccountID, accountIDs) {
				continue
			}
			out = append(out, row)
		}
	}
	return out
}

func negativeRows(row LedgerRow) int64 {
	if row.AmountIn.IsNegative() || row.AmountOut.IsNegative() {
		return 1
	}
	return 0
}

func accountMatches(id *uuid.UUID, filter []uuid.UUID) bool {
	if len(filter) == 0 {
		return true
	}
	if id == nil {
		return false
	}
	for _, candidate := range filter {
		if candidate == *id {
			return true
		}
	}
	return false
}

func anyDateIn(p Period, due time.Time, others ...*time.Time) bool {
	if p.Contains(due) {
		return true
	}
	for _, d := range others {
		if d != nil && p.Contains(*d) {
			return true
		}
	}
	return false
}

var (
	companyA = uuid.MustParse("0b7c8a3e-1d52-4f0e-9d6a-2f3a4b5c6d01")
	companyB = uuid.MustParse("0b7c8a3e-1d52-4f0e-9d6a-2f3a4b5c6d02")
	accountX = uuid.MustParse("5a1e0c2d-7b34-4c8e-a1f2-0d9e8c7b6a01")
	accountY = uuid.MustParse("5a1e0c2d-7b34-4c8e-a1f2-0d9e8c7b6a02")
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func strPtr(s string) *string { return &s }

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func february() Params {
	return Params{
		CompanyID:     companyA,
		Period:        Period{Start: day("2024-02-01"), End: day("2024-02-29")},
		ReportingMode: ModePaymentDate,
		StatusFilter:  FilterAll,
	}
}

func ledgerRow(date, in, out, status string) LedgerRow {
	row := LedgerRow{
		ID:           uuid.New(),
		CompanyID:    companyA,
		AccountID:    idPtr(accountX),
		Kind:         string(MovementInflow),
		AmountIn:     dec(in),
		AmountOut:    dec(out),
		MovementDate: day(date),
		CreatedAt:    day(date).Add(9 * time.Hour),
	}
	if dec(out).IsPositive() {
		row.Kind = string(MovementOutflow)
	}
	if status != "" {
		row.Status = strPtr(status)
	}
	return row
}

func installmentRow(due, amount, status string) InstallmentRow {
	row := InstallmentRow{
		ID:        uuid.New(),
		ParentID:  uuid.New(),
		CompanyID: companyA,
		AccountID: idPtr(accountX),
		Number:    1,
		Amount:    dec(amount),
		DueDate:   day(due),
	}
	if status != "" {
		row.Status = strPtr(status)
	}
	return row
}

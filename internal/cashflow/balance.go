package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCalculator derives balances from settled movement history only.
// Opening balances stored on bank accounts are never read.
type BalanceCalculator struct {
	repo SourceRepository
}

// NewBalanceCalculator builds a BalanceCalculator.
func NewBalanceCalculator(repo SourceRepository) *BalanceCalculator {
	return &BalanceCalculator{repo: repo}
}

// ComputeInitialBalance sums amount_in - amount_out over settled ledger
// movements dated strictly before periodStart, starting from zero.
// Installments never contribute unless they produced a ledger movement.
func (c *BalanceCalculator) ComputeInitialBalance(ctx context.Context, companyID uuid.UUID, periodStart time.Time, accountIDs []uuid.UUID) (decimal.Decimal, error) {
	if companyID == uuid.Nil {
		return decimal.Zero, invalid("company_id", "required")
	}
	if periodStart.IsZero() {
		return decimal.Zero, invalid("data_inicio", "required")
	}
	sums, err := c.repo.MovementTotalsBefore(ctx, companyID, truncateDay(periodStart), accountIDs)
	if err != nil {
		return decimal.Zero, sourceError("initial_balance", err)
	}
	total := decimal.Zero
	for _, sum := range sums {
		if CoerceStatus(sum.Status) != StatusSettled {
			continue
		}
		if sum.Negative > 0 {
			return decimal.Zero, negativeHistory("initial_balance", sum.Negative, periodStart)
		}
		total = total.Add(sum.Net)
	}
	return total, nil
}

// AccountBalances returns, per bank account, the settled balance carried
// into the period and the settled balance at the end of the period.
func (c *BalanceCalculator) AccountBalances(ctx context.Context, companyID uuid.UUID, period Period, accountIDs []uuid.UUID) ([]AccountBalance, error) {
	if companyID == uuid.Nil {
		return nil, invalid("company_id", "required")
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	accounts, err := c.repo.Accounts(ctx, companyID, accountIDs)
	if err != nil {
		return nil, sourceError("accounts", err)
	}
	opening, err := c.settledByAccount(ctx, companyID, period.Start, accountIDs)
	if err != nil {
		return nil, err
	}
	closing, err := c.settledByAccount(ctx, companyID, period.End.AddDate(0, 0, 1), accountIDs)
	if err != nil {
		return nil, err
	}
	balances := make([]AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		balances = append(balances, AccountBalance{
			AccountID:      account.ID,
			Description:    account.Description,
			AccountType:    account.AccountType,
			InitialBalance: opening[account.ID],
			CurrentBalance: closing[account.ID],
		})
	}
	return balances, nil
}

func (c *BalanceCalculator) settledByAccount(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	sums, err := c.repo.AccountTotalsBefore(ctx, companyID, truncateDay(before), accountIDs)
	if err != nil {
		return nil, sourceError("account_balances", err)
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(sums))
	for _, sum := range sums {
		if CoerceStatus(sum.Status) != StatusSettled {
			continue
		}
		if sum.Negative > 0 {
			return nil, negativeHistory("account_balances", sum.Negative, before)
		}
		out[sum.AccountID] = out[sum.AccountID].Add(sum.Net)
	}
	return out, nil
}

func negativeHistory(source string, rows int64, before time.Time) error {
	return sourceError(source, fmt.Errorf("%d settled movements before %s: %w", rows, truncateDay(before).Format(dateLayout), ErrNegativeAmount))
}

package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository implements SourceRepository with read-only queries.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ledgerMovementsSQL = `
	SELECT m.id, m.company_id, m.account_id, m.kind,
		m.amount_in, m.amount_out, m.status,
		m.movement_date, m.created_at, COALESCE(m.description, '')
	FROM account_movements m
	WHERE m.company_id = $1
		AND m.movement_date BETWEEN $2 AND $3
		AND (m.origin IS NULL OR m.origin NOT IN ('receivable', 'payable'))
		AND ($4::uuid[] IS NULL OR m.account_id = ANY($4::uuid[]))
	ORDER BY m.movement_date, m.created_at, m.id`

// LedgerMovements implements SourceRepository.
func (r *PostgresRepository) LedgerMovements(ctx context.Context, q SourceQuery) ([]LedgerRow, error) {
	rows, err := r.db.Query(ctx, ledgerMovementsSQL, pgUUID(q.CompanyID), pgDate(q.Period.Start), pgDate(q.Period.End), uuidArray(q.AccountIDs))
	if err != nil {
		return nil, fmt.Errorf("query ledger movements: %w", err)
	}
	defer rows.Close()

	var out []LedgerRow
	for rows.Next() {
		var (
			id, companyID, accountID pgtype.UUID
			kind, status             pgtype.Text
			amountIn, amountOut      pgtype.Numeric
			movementDate             pgtype.Date
			createdAt                pgtype.Timestamptz
			row                      LedgerRow
		)
		if err := rows.Scan(&id, &companyID, &accountID, &kind, &amountIn, &amountOut, &status, &movementDate, &createdAt, &row.Description); err != nil {
			return nil, fmt.Errorf("scan ledger movement: %w", err)
		}
		row.ID = uuid.UUID(id.Bytes)
		row.CompanyID = uuid.UUID(companyID.Bytes)
		row.AccountID = optionalUUID(accountID)
		row.Kind = kind.String
		row.AmountIn = numericToDecimal(amountIn)
		row.AmountOut = numericToDecimal(amountOut)
		row.Status = optionalText(status)
		row.MovementDate = movementDate.Time
		if createdAt.Valid {
			row.CreatedAt = createdAt.Time
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger movements: %w", err)
	}
	return out, nil
}

type installmentTables struct {
	installments string
	parents      string
	parentKey    string
}

var sideTables = map[InstallmentSide]installmentTables{
	SideReceivable: {installments: "receivable_installments", parents: "receivables", parentKey: "receivable_id"},
	SidePayable:    {installments: "payable_installments", parents: "payables", parentKey: "payable_id"},
}

func installmentsSQL(t installmentTables) string {
	return fmt.Sprintf(`
	SELECT i.id, i.%[3]s, i.company_id, i.account_id, i.number,
		i.amount, i.due_date, i.payment_date, i.clearing_date, i.status,
		COALESCE(p.description, '')
	FROM %[1]s i
	JOIN %[2]s p ON p.id = i.%[3]s AND p.company_id = i.company_id
	WHERE i.company_id = $1
		AND (i.due_date BETWEEN $2 AND $3
			OR i.payment_date BETWEEN $2 AND $3
			OR i.clearing_date BETWEEN $2 AND $3)
		AND ($4::uuid[] IS NULL OR i.account_id = ANY($4::uuid[]))
	ORDER BY i.due_date, i.id`, t.installments, t.parents, t.parentKey)
}

// Installments implements SourceRepository.
func (r *PostgresRepository) Installments(ctx context.Context, side InstallmentSide, q SourceQuery) ([]InstallmentRow, error) {
	tables, ok := sideTables[side]
	if !ok {
		return nil, fmt.Errorf("unknown installment side %q", side)
	}
	rows, err := r.db.Query(ctx, installmentsSQL(tables), pgUUID(q.CompanyID), pgDate(q.Period.Start), pgDate(q.Period.End), uuidArray(q.AccountIDs))
	if err != nil {
		return nil, fmt.Errorf("query %s installments: %w", side, err)
	}
	defer rows.Close()

	var out []InstallmentRow
	for rows.Next() {
		var (
			id, parentID, companyID, accountID pgtype.UUID
			number                             pgtype.Int4
			amount                             pgtype.Numeric
			dueDate, paymentDate, clearingDate pgtype.Date
			status                             pgtype.Text
			row                                InstallmentRow
		)
		if err := rows.Scan(&id, &parentID, &companyID, &accountID, &number, &amount, &dueDate, &paymentDate, &clearingDate, &status, &row.Description); err != nil {
			return nil, fmt.Errorf("scan %s installment: %w", side, err)
		}
		row.ID = uuid.UUID(id.Bytes)
		row.ParentID = uuid.UUID(parentID.Bytes)
		row.CompanyID = uuid.UUID(companyID.Bytes)
		row.AccountID = optionalUUID(accountID)
		row.Number = int(number.Int32)
		row.Amount = numericToDecimal(amount)
		row.DueDate = dueDate.Time
		row.PaymentDate = optionalDate(paymentDate)
		row.ClearingDate = optionalDate(clearingDate)
		row.Status = optionalText(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s installments: %w", side, err)
	}
	return out, nil
}

const movementTotalsBeforeSQL = `
	SELECT m.status, SUM(COALESCE(m.amount_in, 0) - COALESCE(m.amount_out, 0)),
		COUNT(*) FILTER (WHERE m.amount_in < 0 OR m.amount_out < 0)
	FROM account_movements m
	WHERE m.company_id = $1
		AND m.movement_date < $2
		AND ($3::uuid[] IS NULL OR m.account_id = ANY($3::uuid[]))
	GROUP BY m.status`

// MovementTotalsBefore implements SourceRepository.
func (r *PostgresRepository) MovementTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]StatusSum, error) {
	rows, err := r.db.Query(ctx, movementTotalsBeforeSQL, pgUUID(companyID), pgDate(before), uuidArray(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("query movement totals: %w", err)
	}
	defer rows.Close()

	var out []StatusSum
	for rows.Next() {
		var (
			status   pgtype.Text
			net      pgtype.Numeric
			negative int64
		)
		if err := rows.Scan(&status, &net, &negative); err != nil {
			return nil, fmt.Errorf("scan movement totals: %w", err)
		}
		out = append(out, StatusSum{Status: optionalText(status), Net: numericToDecimal(net), Negative: negative})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement totals: %w", err)
	}
	return out, nil
}

const accountsSQL = `
	SELECT a.id, COALESCE(a.description, ''), COALESCE(a.account_type, '')
	FROM bank_accounts a
	WHERE a.company_id = $1
		AND ($2::uuid[] IS NULL OR a.id = ANY($2::uuid[]))
	ORDER BY a.description, a.id`

// Accounts implements SourceRepository.
func (r *PostgresRepository) Accounts(ctx context.Context, companyID uuid.UUID, accountIDs []uuid.UUID) ([]AccountRow, error) {
	rows, err := r.db.Query(ctx, accountsSQL, pgUUID(companyID), uuidArray(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []AccountRow
	for rows.Next() {
		var (
			id  pgtype.UUID
			row AccountRow
		)
		if err := rows.Scan(&id, &row.Description, &row.AccountType); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		row.ID = uuid.UUID(id.Bytes)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

const accountTotalsBeforeSQL = `
	SELECT m.account_id, m.status, SUM(COALESCE(m.amount_in, 0) - COALESCE(m.amount_out, 0)),
		COUNT(*) FILTER (WHERE m.amount_in < 0 OR m.amount_out < 0)
	FROM account_movements m
	WHERE m.company_id = $1
		AND m.account_id IS NOT NULL
		AND m.movement_date < $2
		AND ($3::uuid[] IS NULL OR m.account_id = ANY($3::uuid[]))
	GROUP BY m.account_id, m.status`

// AccountTotalsBefore implements SourceRepository.
func (r *PostgresRepository) AccountTotalsBefore(ctx context.Context, companyID uuid.UUID, before time.Time, accountIDs []uuid.UUID) ([]AccountStatusSum, error) {
	rows, err := r.db.Query(ctx, accountTotalsBeforeSQL, pgUUID(companyID), pgDate(before), uuidArray(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("query account totals: %w", err)
	}
	defer rows.Close()

	var out []AccountStatusSum
	for rows.Next() {
		var (
			accountID pgtype.UUID
			status    pgtype.Text
			net       pgtype.Numeric
			negative  int64
		)
		if err := rows.Scan(&accountID, &status, &net, &negative); err != nil {
			return nil, fmt.Errorf("scan account totals: %w", err)
		}
		out = append(out, AccountStatusSum{
			AccountID: uuid.UUID(accountID.Bytes),
			Status:    optionalText(status),
			Net:       numericToDecimal(net),
			Negative:  negative,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account totals: %w", err)
	}
	return out, nil
}

const activeCompaniesSQL = `
	SELECT DISTINCT m.company_id
	FROM account_movements m
	WHERE m.movement_date >= $1
	ORDER BY m.company_id`

// ActiveCompanies lists companies with ledger activity on or after since.
func (r *PostgresRepository) ActiveCompanies(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, activeCompaniesSQL, pgDate(since))
	if err != nil {
		return nil, fmt.Errorf("query active companies: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active company: %w", err)
		}
		out = append(out, uuid.UUID(id.Bytes))
	}
	return out, rows.Err()
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: truncateDay(t), Valid: true}
}

func uuidArray(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func optionalUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func optionalText(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func optionalDate(v pgtype.Date) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

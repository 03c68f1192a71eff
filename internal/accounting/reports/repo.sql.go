package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
)

// PGRepository sources report aggregates from Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ActiveAccounts(ctx context.Context) ([]coa.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, name_ar, type, subtype, parent_id, currency, opening_balance, current_balance, balance_version, is_active, is_system, created_at, updated_at
FROM accounts WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []coa.Account
	for rows.Next() {
		var a coa.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.NameAr, &a.Type, &a.Subtype, &a.ParentID, &a.Currency,
			&a.OpeningBalance, &a.CurrentBalance, &a.BalanceVersion, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGRepository) EntrySums(ctx context.Context, from, to *time.Time) (map[int64]coa.EntrySum, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.account_id, COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE ($1::timestamptz IS NULL OR t.transaction_date >= $1)
  AND ($2::timestamptz IS NULL OR t.transaction_date <= $2)
GROUP BY e.account_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sums := make(map[int64]coa.EntrySum)
	for rows.Next() {
		var accountID int64
		var sum coa.EntrySum
		if err := rows.Scan(&accountID, &sum.Debit, &sum.Credit); err != nil {
			return nil, err
		}
		sums[accountID] = sum
	}
	return sums, rows.Err()
}

// CashMovements returns each transaction's net effect on cash-like
// accounts within the window. A debit to cash is an inflow.
func (r *PGRepository) CashMovements(ctx context.Context, start, end time.Time) ([]CashMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.reference_number, t.description, t.transaction_date, t.type, t.source_type, t.source_id, t.due_date,
  COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM transactions t
JOIN transaction_entries e ON e.transaction_id = t.id
JOIN accounts a ON a.id = e.account_id
WHERE a.subtype IN ('cash','bank')
  AND t.transaction_date >= $1 AND t.transaction_date <= $2
GROUP BY t.id, t.reference_number, t.description, t.transaction_date, t.type, t.source_type, t.source_id, t.due_date
ORDER BY t.transaction_date, t.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []CashMovement
	for rows.Next() {
		var m CashMovement
		var sourceType string
		var sourceID *uuid.UUID
		var dueDate *time.Time
		if err := rows.Scan(&m.TransactionID, &m.Reference, &m.Description, &m.Date, &m.Type,
			&sourceType, &sourceID, &dueDate, &m.Inflow, &m.Outflow); err != nil {
			return nil, err
		}
		m.Source = ledger.SourceFromParts(sourceType, sourceID, dueDate)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// OutstandingInvoices finds invoice-sourced transactions whose entries
// debit receivable (payable=false) or credit payable accounts, and nets
// in payments that reference the same invoice up to asOf.
func (r *PGRepository) OutstandingInvoices(ctx context.Context, asOf time.Time, payable bool) ([]OutstandingInvoice, error) {
	side := `e.debit_amount`
	subtype := `accounts_receivable`
	if payable {
		side = `e.credit_amount`
		subtype = `accounts_payable`
	}
	rows, err := r.pool.Query(ctx, `SELECT t.source_id, t.reference_number, t.due_date, COALESCE(SUM(`+side+`),0),
  COALESCE((SELECT SUM(p.total_amount) FROM transactions p
    WHERE p.type = 'PAYMENT' AND p.source_type = 'invoice' AND p.source_id = t.source_id
      AND p.transaction_date <= $1), 0)
FROM transactions t
JOIN transaction_entries e ON e.transaction_id = t.id
JOIN accounts a ON a.id = e.account_id
WHERE t.type = 'INVOICE' AND t.source_type = 'invoice' AND t.source_id IS NOT NULL
  AND a.subtype = '`+subtype+`'
  AND t.transaction_date <= $1
GROUP BY t.source_id, t.reference_number, t.due_date
ORDER BY t.due_date`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []OutstandingInvoice
	for rows.Next() {
		var inv OutstandingInvoice
		var dueDate *time.Time
		if err := rows.Scan(&inv.InvoiceID, &inv.Reference, &dueDate, &inv.Total, &inv.Settled); err != nil {
			return nil, err
		}
		if dueDate != nil {
			inv.DueDate = *dueDate
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// Repository persists transactions in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

const transactionColumns = `id, reference_number, description, transaction_date, type, source_type, source_id, due_date, total_amount, currency, exchange_rate, cost_center_id, tags, notes, is_locked, approved_by, approved_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var sourceType string
	var sourceID *uuid.UUID
	var dueDate *time.Time
	err := row.Scan(&t.ID, &t.ReferenceNumber, &t.Description, &t.Date, &t.Type, &sourceType, &sourceID, &dueDate,
		&t.TotalAmount, &t.Currency, &t.ExchangeRate, &t.CostCenterID, &t.Tags, &t.Notes,
		&t.IsLocked, &t.ApprovedBy, &t.ApprovedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	t.Source = SourceFromParts(sourceType, sourceID, dueDate)
	return t, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	sourceType, sourceID, dueDate := SourceParts(t.Source)
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (reference_number, description, transaction_date, type, source_type, source_id, due_date, total_amount, currency, exchange_rate, cost_center_id, tags, notes, is_locked)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,FALSE) RETURNING `+transactionColumns,
		t.ReferenceNumber, t.Description, t.Date, t.Type, sourceType, sourceID, dueDate,
		t.TotalAmount, t.Currency, t.ExchangeRate, t.CostCenterID, t.Tags, t.Notes)
	inserted, err := scanTransaction(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Transaction{}, fmt.Errorf("%w: duplicate reference %q", shared.ErrValidation, t.ReferenceNumber)
		}
		return Transaction{}, err
	}
	return inserted, nil
}

func (r *txRepository) UpdateTransactionHeader(ctx context.Context, t Transaction) error {
	sourceType, sourceID, dueDate := SourceParts(t.Source)
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET description=$2, transaction_date=$3, type=$4, source_type=$5, source_id=$6, due_date=$7, total_amount=$8, currency=$9, exchange_rate=$10, cost_center_id=$11, tags=$12, notes=$13, updated_at=NOW() WHERE id=$1`,
		t.ID, t.Description, t.Date, t.Type, sourceType, sourceID, dueDate, t.TotalAmount, t.Currency, t.ExchangeRate, t.CostCenterID, t.Tags, t.Notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) ReplaceEntries(ctx context.Context, txnID int64, inputs []EntryInput) ([]Entry, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_entries WHERE transaction_id=$1`, txnID); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(inputs))
	for _, in := range inputs {
		var e Entry
		err := r.tx.QueryRow(ctx, `INSERT INTO transaction_entries (transaction_id, account_id, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4) RETURNING id, transaction_id, account_id, debit_amount, credit_amount, created_at`,
			txnID, in.AccountID, in.Debit, in.Credit).
			Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Debit, &e.Credit, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *txRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	txn, err := scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
	if err != nil {
		return Transaction{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, transaction_id, account_id, debit_amount, credit_amount, created_at
FROM transaction_entries WHERE transaction_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Debit, &e.Credit, &e.CreatedAt); err != nil {
			return Transaction{}, err
		}
		txn.Entries = append(txn.Entries, e)
	}
	return txn, rows.Err()
}

func (r *txRepository) listTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (r *txRepository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return r.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY transaction_date DESC, id DESC`)
}

func (r *txRepository) ListTransactionsByType(ctx context.Context, t TransactionType) ([]Transaction, error) {
	return r.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE type=$1 ORDER BY transaction_date DESC, id DESC`, t)
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_entries WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetLocked(ctx context.Context, id int64, locked bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET is_locked=$2, updated_at=NOW() WHERE id=$1`, id, locked)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetApproval(ctx context.Context, id, approverID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET approved_by=$2, approved_at=$3, updated_at=NOW() WHERE id=$1 AND approved_by IS NULL`, id, approverID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyApproved
	}
	return nil
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (coa.Account, error) {
	var a coa.Account
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, name_ar, type, subtype, parent_id, currency, opening_balance, current_balance, balance_version, is_active, is_system, created_at, updated_at
FROM accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.NameAr, &a.Type, &a.Subtype, &a.ParentID, &a.Currency,
			&a.OpeningBalance, &a.CurrentBalance, &a.BalanceVersion, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, fmt.Errorf("%w: account %d", shared.ErrValidation, id)
		}
		return coa.Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal, expectVersion int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance=$2, balance_version=balance_version+1, updated_at=NOW()
WHERE id=$1 AND balance_version=$3`, accountID, balance, expectVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

package coa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

const accountColumns = `id, code, name, name_ar, type, subtype, parent_id, currency, opening_balance, current_balance, balance_version, is_active, is_system, created_at, updated_at`

// PGRepository persists accounts in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.NameAr, &a.Type, &a.Subtype, &a.ParentID, &a.Currency,
		&a.OpeningBalance, &a.CurrentBalance, &a.BalanceVersion, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PGRepository) Create(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, name_ar, type, subtype, parent_id, currency, opening_balance, current_balance, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+accountColumns,
		a.Code, a.Name, a.NameAr, a.Type, a.Subtype, a.ParentID, a.Currency, a.OpeningBalance, a.CurrentBalance, a.IsActive, a.IsSystem)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, fmt.Errorf("%w: duplicate account code %q", shared.ErrValidation, a.Code)
		}
		return Account{}, err
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *PGRepository) List(ctx context.Context, onlyActive bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY code`
	if onlyActive {
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE is_active ORDER BY code`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, a Account) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$2, name_ar=$3, subtype=$4, parent_id=$5, is_active=$6, updated_at=NOW() WHERE id=$1`,
		a.ID, a.Name, a.NameAr, a.Subtype, a.ParentID, a.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: account %d is referenced", shared.ErrConflict, id)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) AdjustBalances(ctx context.Context, deltas map[int64]decimal.Decimal) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := adjustBalances(ctx, tx, deltas); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepository) Reparent(ctx context.Context, a Account, deltas map[int64]decimal.Decimal) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	cmd, err := tx.Exec(ctx, `UPDATE accounts SET parent_id=$2, updated_at=NOW() WHERE id=$1`, a.ID, a.ParentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if err := adjustBalances(ctx, tx, deltas); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// adjustBalances applies deltas in ascending account order so concurrent
// writers acquire row locks in a stable order. Each touched row's
// balance_version is bumped, invalidating in-flight compare-and-swaps.
func adjustBalances(ctx context.Context, tx pgx.Tx, deltas map[int64]decimal.Decimal) error {
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		cmd, err := tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, balance_version = balance_version + 1, updated_at = NOW() WHERE id=$1`,
			id, deltas[id])
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
	}
	return nil
}

func (r *PGRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *PGRepository) HasEntries(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transaction_entries WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *PGRepository) EntrySums(ctx context.Context, from, to *time.Time) (map[int64]EntrySum, error) {
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
	sums := make(map[int64]EntrySum)
	for rows.Next() {
		var accountID int64
		var sum EntrySum
		if err := rows.Scan(&accountID, &sum.Debit, &sum.Credit); err != nil {
			return nil, err
		}
		sums[accountID] = sum
	}
	return sums, rows.Err()
}

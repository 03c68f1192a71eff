package currencies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// PGRepository persists currencies in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const currencyColumns = `code, name, exchange_rate, is_base, created_at, updated_at`

func scanCurrency(row pgx.Row) (Currency, error) {
	var c Currency
	err := row.Scan(&c.Code, &c.Name, &c.ExchangeRate, &c.IsBase, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Currency{}, shared.ErrNotFound
		}
		return Currency{}, err
	}
	return c, nil
}

func (r *PGRepository) Get(ctx context.Context, code string) (Currency, error) {
	return scanCurrency(r.pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE code=$1`, code))
}

func (r *PGRepository) Base(ctx context.Context) (Currency, error) {
	return scanCurrency(r.pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE is_base`))
}

func (r *PGRepository) List(ctx context.Context) ([]Currency, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var currencies []Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, c Currency) (Currency, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO currencies (code, name, exchange_rate, is_base)
VALUES ($1,$2,$3,$4) RETURNING `+currencyColumns, c.Code, c.Name, c.ExchangeRate, c.IsBase)
	created, err := scanCurrency(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Currency{}, fmt.Errorf("%w: duplicate currency %q", shared.ErrValidation, c.Code)
		}
		return Currency{}, err
	}
	return created, nil
}

func (r *PGRepository) UpdateRate(ctx context.Context, code string, rate decimal.Decimal) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE currencies SET exchange_rate=$2, updated_at=NOW() WHERE code=$1`, code, rate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) SwapBase(ctx context.Context, code string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var newBaseRate decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT exchange_rate FROM currencies WHERE code=$1 FOR UPDATE`, code).Scan(&newBaseRate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE currencies SET exchange_rate = exchange_rate / $1, updated_at=NOW()`, newBaseRate); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE currencies SET is_base = (code = $1)`, code); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

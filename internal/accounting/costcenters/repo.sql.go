package costcenters

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// PGRepository persists cost centers in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const costCenterColumns = `id, code, name, name_ar, description, is_active, created_at, updated_at`

func scanCostCenter(row pgx.Row) (CostCenter, error) {
	var cc CostCenter
	err := row.Scan(&cc.ID, &cc.Code, &cc.Name, &cc.NameAr, &cc.Description, &cc.IsActive, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostCenter{}, shared.ErrNotFound
		}
		return CostCenter{}, err
	}
	return cc, nil
}

func (r *PGRepository) Create(ctx context.Context, cc CostCenter) (CostCenter, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO cost_centers (code, name, name_ar, description, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING `+costCenterColumns, cc.Code, cc.Name, cc.NameAr, cc.Description, cc.IsActive)
	created, err := scanCostCenter(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return CostCenter{}, fmt.Errorf("%w: duplicate cost center code %q", shared.ErrValidation, cc.Code)
		}
		return CostCenter{}, err
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (CostCenter, error) {
	return scanCostCenter(r.pool.QueryRow(ctx, `SELECT `+costCenterColumns+` FROM cost_centers WHERE id=$1`, id))
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (CostCenter, error) {
	return scanCostCenter(r.pool.QueryRow(ctx, `SELECT `+costCenterColumns+` FROM cost_centers WHERE code=$1`, code))
}

func (r *PGRepository) List(ctx context.Context) ([]CostCenter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+costCenterColumns+` FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var centers []CostCenter
	for rows.Next() {
		cc, err := scanCostCenter(rows)
		if err != nil {
			return nil, err
		}
		centers = append(centers, cc)
	}
	return centers, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, cc CostCenter) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE cost_centers SET name=$2, name_ar=$3, description=$4, is_active=$5, updated_at=NOW() WHERE id=$1`,
		cc.ID, cc.Name, cc.NameAr, cc.Description, cc.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cost_centers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) CountTransactionRefs(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE cost_center_id=$1`, id).Scan(&count)
	return count, err
}

func (r *PGRepository) CountFixedAssetRefs(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fixed_assets WHERE cost_center_id=$1`, id).Scan(&count)
	return count, err
}

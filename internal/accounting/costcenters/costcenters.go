// Package costcenters keeps the flat tagging dimension transactions can
// be sliced by. It carries no balance semantics of its own.
package costcenters

import (
	"context"
	"fmt"
	"time"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// CostCenter is a classification tag for transactions and fixed assets.
type CostCenter struct {
	ID          int64
	Code        string
	Name        string
	NameAr      string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists cost centers.
type Repository interface {
	Create(ctx context.Context, cc CostCenter) (CostCenter, error)
	Get(ctx context.Context, id int64) (CostCenter, error)
	GetByCode(ctx context.Context, code string) (CostCenter, error)
	List(ctx context.Context) ([]CostCenter, error)
	Update(ctx context.Context, cc CostCenter) error
	Delete(ctx context.Context, id int64) error
	CountTransactionRefs(ctx context.Context, id int64) (int64, error)
	CountFixedAssetRefs(ctx context.Context, id int64) (int64, error)
}

// Service owns the cost center registry.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the registry.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register validates and persists a new cost center.
func (s *Service) Register(ctx context.Context, code, name, nameAr, description string) (CostCenter, error) {
	if code == "" {
		return CostCenter{}, fmt.Errorf("%w: cost center code required", shared.ErrValidation)
	}
	if name == "" {
		return CostCenter{}, fmt.Errorf("%w: cost center name required", shared.ErrValidation)
	}
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return CostCenter{}, fmt.Errorf("%w: duplicate cost center code %q", shared.ErrValidation, code)
	}
	now := s.now()
	return s.repo.Create(ctx, CostCenter{
		Code:        code,
		Name:        name,
		NameAr:      nameAr,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Get returns a cost center.
func (s *Service) Get(ctx context.Context, id int64) (CostCenter, error) {
	return s.repo.Get(ctx, id)
}

// List returns all cost centers.
func (s *Service) List(ctx context.Context) ([]CostCenter, error) {
	return s.repo.List(ctx)
}

// Deactivate hides the cost center from new postings without removing it.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	cc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	cc.IsActive = false
	cc.UpdatedAt = s.now()
	return s.repo.Update(ctx, cc)
}

// Delete removes a cost center, refusing while transactions or fixed
// assets reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	cc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	txRefs, err := s.repo.CountTransactionRefs(ctx, id)
	if err != nil {
		return err
	}
	if txRefs > 0 {
		return fmt.Errorf("%w: cost center %s referenced by %d transactions", shared.ErrConflict, cc.Code, txRefs)
	}
	assetRefs, err := s.repo.CountFixedAssetRefs(ctx, id)
	if err != nil {
		return err
	}
	if assetRefs > 0 {
		return fmt.Errorf("%w: cost center %s referenced by %d fixed assets", shared.ErrConflict, cc.Code, assetRefs)
	}
	return s.repo.Delete(ctx, id)
}

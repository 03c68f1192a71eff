// Package currencies keeps the exchange-rate table. Rates are expressed
// relative to the single base currency; exactly one currency is base.
package currencies

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// Currency is an ISO currency with its rate against the base.
type Currency struct {
	Code         string
	Name         string
	ExchangeRate decimal.Decimal
	IsBase       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists currencies.
type Repository interface {
	Get(ctx context.Context, code string) (Currency, error)
	List(ctx context.Context) ([]Currency, error)
	Base(ctx context.Context) (Currency, error)
	Create(ctx context.Context, c Currency) (Currency, error)
	UpdateRate(ctx context.Context, code string, rate decimal.Decimal) error
	// SwapBase atomically clears the old base flag, marks code as base,
	// and rebases every rate so the new base reads 1.
	SwapBase(ctx context.Context, code string) error
}

// Service owns the currency registry.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the registry.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register adds a currency. The first registered currency becomes the
// base with a rate of 1; later ones must carry a positive rate.
func (s *Service) Register(ctx context.Context, code, name string, rate decimal.Decimal) (Currency, error) {
	if len(code) != 3 {
		return Currency{}, fmt.Errorf("%w: currency code must be 3 letters", shared.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, code); err == nil {
		return Currency{}, fmt.Errorf("%w: duplicate currency %q", shared.ErrValidation, code)
	}
	existing, err := s.repo.List(ctx)
	if err != nil {
		return Currency{}, err
	}
	now := s.now()
	c := Currency{Code: code, Name: name, ExchangeRate: rate, CreatedAt: now, UpdatedAt: now}
	if len(existing) == 0 {
		c.IsBase = true
		c.ExchangeRate = decimal.NewFromInt(1)
	} else if rate.Sign() <= 0 {
		return Currency{}, fmt.Errorf("%w: exchange rate must be positive", shared.ErrValidation)
	}
	return s.repo.Create(ctx, c)
}

// List returns all currencies.
func (s *Service) List(ctx context.Context) ([]Currency, error) {
	return s.repo.List(ctx)
}

// Base returns the designated base currency.
func (s *Service) Base(ctx context.Context) (Currency, error) {
	return s.repo.Base(ctx)
}

// SetRate updates a non-base currency's rate against the base.
func (s *Service) SetRate(ctx context.Context, code string, rate decimal.Decimal) error {
	if rate.Sign() <= 0 {
		return fmt.Errorf("%w: exchange rate must be positive", shared.ErrValidation)
	}
	c, err := s.repo.Get(ctx, code)
	if err != nil {
		return err
	}
	if c.IsBase {
		return fmt.Errorf("%w: base currency rate is fixed at 1", shared.ErrValidation)
	}
	return s.repo.UpdateRate(ctx, code, rate)
}

// SetBase designates a new base currency and rebases all rates.
func (s *Service) SetBase(ctx context.Context, code string) error {
	c, err := s.repo.Get(ctx, code)
	if err != nil {
		return err
	}
	if c.IsBase {
		return shared.ErrNoOp
	}
	return s.repo.SwapBase(ctx, code)
}

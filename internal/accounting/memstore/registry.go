package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/costcenters"
	"github.com/aurum-erp/aurum-erp/internal/accounting/currencies"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// CostCenterRepo is the cost-center view over the store.
type CostCenterRepo struct {
	s *Store
}

// CostCenters returns the costcenters.Repository view.
func (s *Store) CostCenters() *CostCenterRepo {
	return &CostCenterRepo{s: s}
}

func (r *CostCenterRepo) Create(ctx context.Context, cc costcenters.CostCenter) (costcenters.CostCenter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.costCenters {
		if existing.Code == cc.Code {
			return costcenters.CostCenter{}, fmt.Errorf("%w: duplicate code %q", shared.ErrValidation, cc.Code)
		}
	}
	r.s.nextCostCenterID++
	cc.ID = r.s.nextCostCenterID
	cc.CreatedAt = r.s.now()
	cc.UpdatedAt = cc.CreatedAt
	r.s.costCenters[cc.ID] = cc
	return cc, nil
}

func (r *CostCenterRepo) Get(ctx context.Context, id int64) (costcenters.CostCenter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cc, ok := r.s.costCenters[id]
	if !ok {
		return costcenters.CostCenter{}, shared.ErrNotFound
	}
	return cc, nil
}

func (r *CostCenterRepo) GetByCode(ctx context.Context, code string) (costcenters.CostCenter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cc := range r.s.costCenters {
		if cc.Code == code {
			return cc, nil
		}
	}
	return costcenters.CostCenter{}, shared.ErrNotFound
}

func (r *CostCenterRepo) List(ctx context.Context) ([]costcenters.CostCenter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]costcenters.CostCenter, 0, len(r.s.costCenters))
	for _, cc := range r.s.costCenters {
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *CostCenterRepo) Update(ctx context.Context, cc costcenters.CostCenter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.costCenters[cc.ID]
	if !ok {
		return shared.ErrNotFound
	}
	cc.CreatedAt = current.CreatedAt
	cc.UpdatedAt = r.s.now()
	r.s.costCenters[cc.ID] = cc
	return nil
}

func (r *CostCenterRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.costCenters[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.s.costCenters, id)
	return nil
}

func (r *CostCenterRepo) CountTransactionRefs(ctx context.Context, id int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.transactions {
		if t.CostCenterID != nil && *t.CostCenterID == id {
			n++
		}
	}
	return n, nil
}

func (r *CostCenterRepo) CountFixedAssetRefs(ctx context.Context, id int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.fixedAssetCCs[id], nil
}

// TagFixedAsset records a fixed-asset reference against a cost center.
func (s *Store) TagFixedAsset(costCenterID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedAssetCCs[costCenterID]++
}

// CurrencyRepo is the currency view over the store.
type CurrencyRepo struct {
	s *Store
}

// Currencies returns the currencies.Repository view.
func (s *Store) Currencies() *CurrencyRepo {
	return &CurrencyRepo{s: s}
}

func (r *CurrencyRepo) Get(ctx context.Context, code string) (currencies.Currency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.currencies[code]
	if !ok {
		return currencies.Currency{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *CurrencyRepo) List(ctx context.Context) ([]currencies.Currency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]currencies.Currency, 0, len(r.s.currencies))
	for _, c := range r.s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *CurrencyRepo) Base(ctx context.Context) (currencies.Currency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.currencies {
		if c.IsBase {
			return c, nil
		}
	}
	return currencies.Currency{}, shared.ErrNotFound
}

func (r *CurrencyRepo) Create(ctx context.Context, c currencies.Currency) (currencies.Currency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.currencies[c.Code]; ok {
		return currencies.Currency{}, fmt.Errorf("%w: duplicate currency %q", shared.ErrValidation, c.Code)
	}
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	r.s.currencies[c.Code] = c
	return c, nil
}

func (r *CurrencyRepo) UpdateRate(ctx context.Context, code string, rate decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.currencies[code]
	if !ok {
		return shared.ErrNotFound
	}
	c.ExchangeRate = rate
	c.UpdatedAt = r.s.now()
	r.s.currencies[code] = c
	return nil
}

func (r *CurrencyRepo) SwapBase(ctx context.Context, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	target, ok := r.s.currencies[code]
	if !ok {
		return shared.ErrNotFound
	}
	pivot := target.ExchangeRate
	if pivot.IsZero() {
		return fmt.Errorf("%w: currency %q has no rate", shared.ErrValidation, code)
	}
	for k, c := range r.s.currencies {
		c.ExchangeRate = c.ExchangeRate.Div(pivot)
		c.IsBase = k == code
		c.UpdatedAt = r.s.now()
		r.s.currencies[k] = c
	}
	return nil
}

package coa

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// Repository persists chart of accounts nodes.
type Repository interface {
	Create(ctx context.Context, account Account) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, onlyActive bool) ([]Account, error)
	Update(ctx context.Context, account Account) error
	Delete(ctx context.Context, id int64) error
	HasChildren(ctx context.Context, id int64) (bool, error)
	HasEntries(ctx context.Context, id int64) (bool, error)
	EntrySums(ctx context.Context, from, to *time.Time) (map[int64]EntrySum, error)
	// AdjustBalances applies signed deltas to cached balances atomically,
	// bumping each account's balance version so concurrent ledger writers
	// see the movement and retry their compare-and-swap.
	AdjustBalances(ctx context.Context, deltas map[int64]decimal.Decimal) error
	// Reparent rewrites the parent link and applies cache deltas in the
	// same atomic unit.
	Reparent(ctx context.Context, account Account, deltas map[int64]decimal.Decimal) error
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Code           string
	Name           string
	NameAr         string
	Type           AccountType
	Subtype        string
	ParentID       *int64
	Currency       string
	OpeningBalance decimal.Decimal
	IsSystem       bool
}

var codePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// Service owns structural integrity of the account tree.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register validates and persists a new account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	if in.Code == "" || !codePattern.MatchString(in.Code) {
		return Account{}, fmt.Errorf("%w: account code must be numeric", shared.ErrValidation)
	}
	if in.Name == "" {
		return Account{}, fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, in.Type)
	}
	if in.Currency == "" {
		return Account{}, fmt.Errorf("%w: currency required", shared.ErrValidation)
	}
	if _, err := s.repo.GetByCode(ctx, in.Code); err == nil {
		return Account{}, fmt.Errorf("%w: duplicate account code %q", shared.ErrValidation, in.Code)
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Account{}, fmt.Errorf("%w: parent account %d", shared.ErrValidation, *in.ParentID)
		}
	}
	now := s.now()
	account := Account{
		Code:           in.Code,
		Name:           in.Name,
		NameAr:         in.NameAr,
		Type:           in.Type,
		Subtype:        in.Subtype,
		ParentID:       in.ParentID,
		Currency:       in.Currency,
		OpeningBalance: in.OpeningBalance,
		CurrentBalance: in.OpeningBalance,
		IsActive:       true,
		IsSystem:       in.IsSystem,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return Account{}, err
	}
	// The cached balance of every ancestor rolls descendants up, so a
	// non-zero opening must be pushed up the chain at birth.
	if created.ParentID != nil && !created.OpeningBalance.IsZero() {
		chain, err := s.chainFrom(ctx, *created.ParentID)
		if err != nil {
			return Account{}, err
		}
		deltas := make(map[int64]decimal.Decimal, len(chain))
		for _, ancestor := range chain {
			deltas[ancestor.ID] = created.OpeningBalance
		}
		if err := s.repo.AdjustBalances(ctx, deltas); err != nil {
			return Account{}, err
		}
	}
	return created, nil
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, onlyActive bool) ([]Account, error) {
	return s.repo.List(ctx, onlyActive)
}

// Rename updates the localized name pair and subtype.
func (s *Service) Rename(ctx context.Context, id int64, name, nameAr, subtype string) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if name == "" {
		return Account{}, fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	account.Name = name
	account.NameAr = nameAr
	account.Subtype = subtype
	account.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Reparent moves an account under a new parent, rejecting cycles. The
// account's cached balance already rolls up its whole subtree, so that
// amount is subtracted from the old ancestor chain and added to the new
// one in the same atomic unit as the link change.
func (s *Service) Reparent(ctx context.Context, id int64, newParentID *int64) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if newParentID != nil {
		if *newParentID == id {
			return Account{}, fmt.Errorf("%w: account %d cannot parent itself", shared.ErrStructural, id)
		}
		if _, err := s.repo.Get(ctx, *newParentID); err != nil {
			return Account{}, fmt.Errorf("%w: parent account %d", shared.ErrValidation, *newParentID)
		}
		if err := s.ensureNoCycle(ctx, id, *newParentID); err != nil {
			return Account{}, err
		}
	}
	deltas := make(map[int64]decimal.Decimal)
	if account.ParentID != nil {
		oldChain, err := s.chainFrom(ctx, *account.ParentID)
		if err != nil {
			return Account{}, err
		}
		for _, ancestor := range oldChain {
			deltas[ancestor.ID] = deltas[ancestor.ID].Sub(account.CurrentBalance)
		}
	}
	if newParentID != nil {
		newChain, err := s.chainFrom(ctx, *newParentID)
		if err != nil {
			return Account{}, err
		}
		for _, ancestor := range newChain {
			deltas[ancestor.ID] = deltas[ancestor.ID].Add(account.CurrentBalance)
		}
	}
	account.ParentID = newParentID
	account.UpdatedAt = s.now()
	if err := s.repo.Reparent(ctx, account, deltas); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Deactivate flags an account as inactive without removing history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	account.IsActive = false
	account.UpdatedAt = s.now()
	return s.repo.Update(ctx, account)
}

// Delete removes an account, refusing while dependents exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return fmt.Errorf("%w: system account %s", shared.ErrConflict, account.Code)
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return fmt.Errorf("%w: account %s has child accounts", shared.ErrConflict, account.Code)
	}
	hasEntries, err := s.repo.HasEntries(ctx, id)
	if err != nil {
		return err
	}
	if hasEntries {
		return fmt.Errorf("%w: account %s has posted entries", shared.ErrConflict, account.Code)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// With no children and no entries left, the cached balance is just
	// the opening balance; take it back out of the ancestor chain.
	if account.ParentID != nil && !account.CurrentBalance.IsZero() {
		chain, err := s.chainFrom(ctx, *account.ParentID)
		if err != nil {
			return err
		}
		deltas := make(map[int64]decimal.Decimal, len(chain))
		for _, ancestor := range chain {
			deltas[ancestor.ID] = account.CurrentBalance.Neg()
		}
		return s.repo.AdjustBalances(ctx, deltas)
	}
	return nil
}

// ComputeBalance returns the ground-truth balance of an account as of a
// date: opening balance plus its own signed entries, plus the recursive
// roll-up of every child account.
func (s *Service) ComputeBalance(ctx context.Context, id int64, asOf time.Time) (decimal.Decimal, error) {
	accounts, err := s.repo.List(ctx, false)
	if err != nil {
		return decimal.Zero, err
	}
	sums, err := s.repo.EntrySums(ctx, nil, &asOf)
	if err != nil {
		return decimal.Zero, err
	}
	tree := BuildTree(accounts)
	if _, ok := tree.nodes[id]; !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	return tree.RollUp(id, sums), nil
}

// Ancestors returns the parent chain of an account, nearest first. The
// walk is bounded by a visited set so a corrupt parent link cannot loop.
func (s *Service) Ancestors(ctx context.Context, id int64) ([]Account, error) {
	var chain []Account
	visited := map[int64]bool{id: true}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for current.ParentID != nil {
		next := *current.ParentID
		if visited[next] {
			return nil, fmt.Errorf("%w: cycle through account %d", shared.ErrStructural, next)
		}
		visited[next] = true
		current, err = s.repo.Get(ctx, next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, current)
	}
	return chain, nil
}

// chainFrom returns the account itself followed by its ancestors,
// nearest first.
func (s *Service) chainFrom(ctx context.Context, id int64) ([]Account, error) {
	head, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rest, err := s.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]Account{head}, rest...), nil
}

// ensureNoCycle rejects a reparent that would place id on its own
// ancestor chain.
func (s *Service) ensureNoCycle(ctx context.Context, id, newParentID int64) error {
	visited := map[int64]bool{}
	current := newParentID
	for {
		if current == id {
			return fmt.Errorf("%w: account %d would become its own ancestor", shared.ErrStructural, id)
		}
		if visited[current] {
			return fmt.Errorf("%w: cycle through account %d", shared.ErrStructural, current)
		}
		visited[current] = true
		parent, err := s.repo.Get(ctx, current)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	acctshared "github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	"github.com/aurum-erp/aurum-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside one atomic unit.
type TxRepository interface {
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	UpdateTransactionHeader(ctx context.Context, txn Transaction) error
	ReplaceEntries(ctx context.Context, txnID int64, entries []EntryInput) ([]Entry, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	ListTransactionsByType(ctx context.Context, t TransactionType) ([]Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	SetLocked(ctx context.Context, id int64, locked bool) error
	SetApproval(ctx context.Context, id int64, approverID int64, at time.Time) error
	GetAccount(ctx context.Context, id int64) (coa.Account, error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal, expectVersion int64) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates cached report aggregates after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// MetricsPort counts ledger activity.
type MetricsPort interface {
	TransactionPosted()
	BalanceConflict()
}

const (
	defaultMaxRetries = 3
	defaultBackoff    = 25 * time.Millisecond
)

// Service is the only writer of transactions and account balance caches.
type Service struct {
	repo       RepositoryPort
	refs       *ReferenceGenerator
	audit      AuditPort
	bump       CacheBumper
	metrics    MetricsPort
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

// NewService constructs the ledger engine.
func NewService(repo RepositoryPort, refs *ReferenceGenerator, audit AuditPort, bump CacheBumper) *Service {
	if refs == nil {
		refs = NewReferenceGenerator()
	}
	return &Service{
		repo:       repo,
		refs:       refs,
		audit:      audit,
		bump:       bump,
		now:        time.Now,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches ledger counters.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// WithRetry tunes the balance compare-and-swap retry policy.
func (s *Service) WithRetry(attempts int, backoff time.Duration) {
	if attempts > 0 {
		s.maxRetries = attempts
	}
	if backoff > 0 {
		s.backoff = backoff
	}
}

// CreateTransaction validates the draft, persists the transaction with
// its entries, and applies balance deltas to every referenced account
// and its ancestors as one atomic unit.
func (s *Service) CreateTransaction(ctx context.Context, draft Draft) (Transaction, error) {
	draft = s.withDefaults(draft)
	if err := draft.Validate(); err != nil {
		return Transaction{}, err
	}
	now := s.now()
	txn := Transaction{
		ReferenceNumber: s.refs.Next(now),
		Description:     draft.Description,
		Date:            draft.Date,
		Type:            draft.Type,
		Source:          draft.normalizeSource(),
		TotalAmount:     draft.TotalAmount,
		Currency:        draft.Currency,
		ExchangeRate:    draft.ExchangeRate,
		CostCenterID:    draft.CostCenterID,
		Tags:            draft.Tags,
		Notes:           draft.Notes,
	}
	var created Transaction
	err := s.withBalanceRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		entries, err := tx.ReplaceEntries(ctx, inserted.ID, draft.Entries)
		if err != nil {
			return err
		}
		cache := make(accountCache)
		deltas, err := s.entryDeltas(ctx, tx, cache, entries, false)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, cache, deltas); err != nil {
			return err
		}
		inserted.Entries = entries
		created = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.TransactionPosted()
	}
	s.afterMutation(ctx, "transaction.create", created.ID, map[string]any{
		"reference": created.ReferenceNumber,
		"type":      string(created.Type),
		"total":     created.TotalAmount.StringFixed(2),
	})
	return created, nil
}

// UpdateTransaction replaces the entry set of an unlocked transaction,
// applying the net balance delta atomically.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, draft Draft) (Transaction, error) {
	draft = s.withDefaults(draft)
	if err := draft.Validate(); err != nil {
		return Transaction{}, err
	}
	var updated Transaction
	err := s.withBalanceRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if current.IsLocked {
			return acctshared.ErrLockedTransaction
		}
		cache := make(accountCache)
		deltas, err := s.entryDeltas(ctx, tx, cache, current.Entries, true)
		if err != nil {
			return err
		}
		entries, err := tx.ReplaceEntries(ctx, id, draft.Entries)
		if err != nil {
			return err
		}
		added, err := s.entryDeltas(ctx, tx, cache, entries, false)
		if err != nil {
			return err
		}
		for accountID, delta := range added {
			deltas[accountID] = deltas[accountID].Add(delta)
		}
		next := current
		next.Description = draft.Description
		next.Date = draft.Date
		next.Type = draft.Type
		next.Source = draft.normalizeSource()
		next.TotalAmount = draft.TotalAmount
		next.Currency = draft.Currency
		next.ExchangeRate = draft.ExchangeRate
		next.CostCenterID = draft.CostCenterID
		next.Tags = draft.Tags
		next.Notes = draft.Notes
		if err := tx.UpdateTransactionHeader(ctx, next); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, cache, deltas); err != nil {
			return err
		}
		next.Entries = entries
		updated = next
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterMutation(ctx, "transaction.update", id, map[string]any{
		"reference": updated.ReferenceNumber,
	})
	return updated, nil
}

// DeleteTransaction removes an unlocked transaction, reversing its
// balance deltas atomically.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	err := s.withBalanceRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if current.IsLocked {
			return acctshared.ErrLockedTransaction
		}
		cache := make(accountCache)
		deltas, err := s.entryDeltas(ctx, tx, cache, current.Entries, true)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, cache, deltas); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, "transaction.delete", id, nil)
	return nil
}

// Lock freezes a transaction against updates and deletion.
func (s *Service) Lock(ctx context.Context, id int64) error {
	return s.setLocked(ctx, id, true)
}

// Unlock lifts the freeze again.
func (s *Service) Unlock(ctx context.Context, id int64) error {
	return s.setLocked(ctx, id, false)
}

func (s *Service) setLocked(ctx context.Context, id int64, locked bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if current.IsLocked == locked {
			return acctshared.ErrNoOp
		}
		return tx.SetLocked(ctx, id, locked)
	})
	if err != nil {
		return err
	}
	action := "transaction.unlock"
	if locked {
		action = "transaction.lock"
	}
	s.afterMutation(ctx, action, id, nil)
	return nil
}

// Approve stamps the transaction with an approver, one way only.
// Approval is independent from locking.
func (s *Service) Approve(ctx context.Context, id, approverID int64) error {
	if approverID == 0 {
		return fmt.Errorf("%w: approver required", acctshared.ErrValidation)
	}
	at := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if current.Approved() {
			return acctshared.ErrAlreadyApproved
		}
		return tx.SetApproval(ctx, id, approverID, at)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, "transaction.approve", id, map[string]any{"approver": approverID})
	return nil
}

// Duplicate creates a fresh unlocked, unapproved copy of a transaction
// with the same entries and today's date.
func (s *Service) Duplicate(ctx context.Context, id int64) (Transaction, error) {
	var current Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		current, err = tx.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	entries := make([]EntryInput, 0, len(current.Entries))
	for _, e := range current.Entries {
		entries = append(entries, EntryInput{AccountID: e.AccountID, Debit: e.Debit, Credit: e.Credit})
	}
	draft := Draft{
		Description:  current.Description,
		Date:         s.now().Truncate(24 * time.Hour),
		Type:         current.Type,
		Source:       current.Source,
		TotalAmount:  current.TotalAmount,
		Currency:     current.Currency,
		ExchangeRate: current.ExchangeRate,
		CostCenterID: current.CostCenterID,
		Tags:         current.Tags,
		Notes:        current.Notes,
		Entries:      entries,
	}
	return s.CreateTransaction(ctx, draft)
}

// Get returns a transaction with its entries.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, err = tx.GetTransaction(ctx, id)
		return err
	})
	return txn, err
}

// List returns all transactions, newest first.
func (s *Service) List(ctx context.Context) ([]Transaction, error) {
	var txns []Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txns, err = tx.ListTransactions(ctx)
		return err
	})
	return txns, err
}

// ListByType returns transactions of one kind, used by recurring jobs.
func (s *Service) ListByType(ctx context.Context, t TransactionType) ([]Transaction, error) {
	var txns []Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txns, err = tx.ListTransactionsByType(ctx, t)
		return err
	})
	return txns, err
}

func (s *Service) withDefaults(draft Draft) Draft {
	if draft.ExchangeRate.IsZero() {
		draft.ExchangeRate = decimal.NewFromInt(1)
	}
	return draft
}

// withBalanceRetry re-runs fn with backoff while the balance
// compare-and-swap reports a stale version, then surfaces contention.
func (s *Service) withBalanceRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
		err = s.repo.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, acctshared.ErrVersionConflict) {
			return err
		}
		if s.metrics != nil {
			s.metrics.BalanceConflict()
		}
	}
	return fmt.Errorf("%w after %d attempts", acctshared.ErrContention, s.maxRetries)
}

type accountCache map[int64]coa.Account

func loadAccount(ctx context.Context, tx TxRepository, cache accountCache, id int64) (coa.Account, error) {
	if acc, ok := cache[id]; ok {
		return acc, nil
	}
	acc, err := tx.GetAccount(ctx, id)
	if err != nil {
		return coa.Account{}, err
	}
	cache[id] = acc
	return acc, nil
}

// entryDeltas translates entries into signed cache movements for each
// touched account and all of its ancestors. The sign of a movement is
// fixed by the posted account's normal side and propagates unchanged up
// the parent chain, matching the roll-up definition.
func (s *Service) entryDeltas(ctx context.Context, tx TxRepository, cache accountCache, entries []Entry, reverse bool) (map[int64]decimal.Decimal, error) {
	deltas := make(map[int64]decimal.Decimal)
	for _, entry := range entries {
		account, err := loadAccount(ctx, tx, cache, entry.AccountID)
		if err != nil {
			return nil, err
		}
		delta := coa.SignedAmount(account.Type, entry.Debit, entry.Credit)
		if reverse {
			delta = delta.Neg()
		}
		deltas[account.ID] = deltas[account.ID].Add(delta)
		visited := map[int64]bool{account.ID: true}
		current := account
		for current.ParentID != nil {
			parentID := *current.ParentID
			if visited[parentID] {
				return nil, fmt.Errorf("%w: cycle through account %d", acctshared.ErrStructural, parentID)
			}
			visited[parentID] = true
			parent, err := loadAccount(ctx, tx, cache, parentID)
			if err != nil {
				return nil, err
			}
			deltas[parentID] = deltas[parentID].Add(delta)
			current = parent
		}
	}
	return deltas, nil
}

// applyDeltas commits balance movements via versioned compare-and-swap,
// in ascending account order so concurrent writers acquire row locks in
// a stable order.
func applyDeltas(ctx context.Context, tx TxRepository, cache accountCache, deltas map[int64]decimal.Decimal) error {
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		account := cache[id]
		next := account.CurrentBalance.Add(deltas[id])
		if err := tx.UpdateAccountBalance(ctx, id, next, account.BalanceVersion); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   action,
			Entity:   "transaction",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     meta,
			At:       s.now(),
		})
	}
	if s.bump != nil {
		_ = s.bump.Bump(ctx)
	}
}

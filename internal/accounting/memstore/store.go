// Package memstore is an in-memory implementation of every accounting
// repository port. It backs tests and the smoke tool; semantics mirror
// the Postgres repositories, including versioned balance updates.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/costcenters"
	"github.com/aurum-erp/aurum-erp/internal/accounting/currencies"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/reports"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	"github.com/shopspring/decimal"
)

// Store holds all accounting state behind one mutex.
type Store struct {
	mu sync.Mutex

	accounts      map[int64]coa.Account
	transactions  map[int64]ledger.Transaction
	costCenters   map[int64]costcenters.CostCenter
	currencies    map[string]currencies.Currency
	fixedAssetCCs map[int64]int64

	nextAccountID     int64
	nextTransactionID int64
	nextEntryID       int64
	nextCostCenterID  int64

	now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		accounts:      make(map[int64]coa.Account),
		transactions:  make(map[int64]ledger.Transaction),
		costCenters:   make(map[int64]costcenters.CostCenter),
		currencies:    make(map[string]currencies.Currency),
		fixedAssetCCs: make(map[int64]int64),
		now:           time.Now,
	}
}

// WithNow overrides the clock.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

func cloneTransaction(t ledger.Transaction) ledger.Transaction {
	out := t
	out.Tags = append([]string(nil), t.Tags...)
	out.Entries = append([]ledger.Entry(nil), t.Entries...)
	if t.CostCenterID != nil {
		id := *t.CostCenterID
		out.CostCenterID = &id
	}
	if t.ApprovedBy != nil {
		id := *t.ApprovedBy
		out.ApprovedBy = &id
	}
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		out.ApprovedAt = &at
	}
	return out
}

func cloneAccount(a coa.Account) coa.Account {
	out := a
	if a.ParentID != nil {
		id := *a.ParentID
		out.ParentID = &id
	}
	return out
}

// --- coa.Repository ---

func (s *Store) Create(ctx context.Context, a coa.Account) (coa.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Code == a.Code {
			return coa.Account{}, fmt.Errorf("%w: duplicate code %q", shared.ErrValidation, a.Code)
		}
	}
	s.nextAccountID++
	a.ID = s.nextAccountID
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	s.accounts[a.ID] = cloneAccount(a)
	return a, nil
}

func (s *Store) Get(ctx context.Context, id int64) (coa.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(id)
}

func (s *Store) getAccountLocked(id int64) (coa.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return coa.Account{}, shared.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (coa.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Code == code {
			return cloneAccount(a), nil
		}
	}
	return coa.Account{}, shared.ErrNotFound
}

func (s *Store) List(ctx context.Context, onlyActive bool) ([]coa.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAccountsLocked(onlyActive), nil
}

func (s *Store) listAccountsLocked(onlyActive bool) []coa.Account {
	out := make([]coa.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if onlyActive && !a.IsActive {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Store) Update(ctx context.Context, a coa.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[a.ID]
	if !ok {
		return shared.ErrNotFound
	}
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = s.now()
	// Balance fields belong to the ledger's compare-and-swap path and to
	// AdjustBalances; a header update must not clobber them.
	a.CurrentBalance = current.CurrentBalance
	a.BalanceVersion = current.BalanceVersion
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Store) AdjustBalances(ctx context.Context, deltas map[int64]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustBalancesLocked(deltas)
}

func (s *Store) adjustBalancesLocked(deltas map[int64]decimal.Decimal) error {
	for id := range deltas {
		if _, ok := s.accounts[id]; !ok {
			return shared.ErrNotFound
		}
	}
	for id, delta := range deltas {
		if delta.IsZero() {
			continue
		}
		a := s.accounts[id]
		a.CurrentBalance = a.CurrentBalance.Add(delta)
		a.BalanceVersion++
		a.UpdatedAt = s.now()
		s.accounts[id] = a
	}
	return nil
}

func (s *Store) Reparent(ctx context.Context, a coa.Account, deltas map[int64]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[a.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if err := s.adjustBalancesLocked(deltas); err != nil {
		return err
	}
	current.ParentID = nil
	if a.ParentID != nil {
		id := *a.ParentID
		current.ParentID = &id
	}
	current.UpdatedAt = s.now()
	s.accounts[a.ID] = current
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) HasChildren(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasEntries(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		for _, e := range t.Entries {
			if e.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) EntrySums(ctx context.Context, from, to *time.Time) (map[int64]coa.EntrySum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entrySumsLocked(from, to), nil
}

func (s *Store) entrySumsLocked(from, to *time.Time) map[int64]coa.EntrySum {
	sums := make(map[int64]coa.EntrySum)
	for _, t := range s.transactions {
		if from != nil && t.Date.Before(*from) {
			continue
		}
		if to != nil && t.Date.After(*to) {
			continue
		}
		for _, e := range t.Entries {
			sum := sums[e.AccountID]
			sum.Debit = sum.Debit.Add(e.Debit)
			sum.Credit = sum.Credit.Add(e.Credit)
			sums[e.AccountID] = sum
		}
	}
	return sums
}

// --- ledger.RepositoryPort ---

// WithTx runs fn under the store lock and rolls the whole state back if
// fn fails, matching the SQL repository's transaction boundary.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.snapshotLocked()
	if err := fn(ctx, (*txStore)(s)); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

type storeState struct {
	accounts          map[int64]coa.Account
	transactions      map[int64]ledger.Transaction
	nextAccountID     int64
	nextTransactionID int64
	nextEntryID       int64
}

func (s *Store) snapshotLocked() storeState {
	st := storeState{
		accounts:          make(map[int64]coa.Account, len(s.accounts)),
		transactions:      make(map[int64]ledger.Transaction, len(s.transactions)),
		nextAccountID:     s.nextAccountID,
		nextTransactionID: s.nextTransactionID,
		nextEntryID:       s.nextEntryID,
	}
	for id, a := range s.accounts {
		st.accounts[id] = cloneAccount(a)
	}
	for id, t := range s.transactions {
		st.transactions[id] = cloneTransaction(t)
	}
	return st
}

func (s *Store) restoreLocked(st storeState) {
	s.accounts = st.accounts
	s.transactions = st.transactions
	s.nextAccountID = st.nextAccountID
	s.nextTransactionID = st.nextTransactionID
	s.nextEntryID = st.nextEntryID
}

// txStore exposes the mutating ledger surface while the lock is held.
type txStore Store

func (s *txStore) InsertTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	for _, existing := range s.transactions {
		if existing.ReferenceNumber == t.ReferenceNumber {
			return ledger.Transaction{}, fmt.Errorf("%w: duplicate reference %q", shared.ErrValidation, t.ReferenceNumber)
		}
	}
	s.nextTransactionID++
	t.ID = s.nextTransactionID
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	t.Entries = nil
	s.transactions[t.ID] = cloneTransaction(t)
	return t, nil
}

func (s *txStore) UpdateTransactionHeader(ctx context.Context, t ledger.Transaction) error {
	current, ok := s.transactions[t.ID]
	if !ok {
		return shared.ErrNotFound
	}
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = s.now()
	t.Entries = current.Entries
	t.IsLocked = current.IsLocked
	t.ApprovedBy = current.ApprovedBy
	t.ApprovedAt = current.ApprovedAt
	s.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (s *txStore) ReplaceEntries(ctx context.Context, txnID int64, inputs []ledger.EntryInput) ([]ledger.Entry, error) {
	t, ok := s.transactions[txnID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	entries := make([]ledger.Entry, 0, len(inputs))
	for _, in := range inputs {
		s.nextEntryID++
		entries = append(entries, ledger.Entry{
			ID:            s.nextEntryID,
			TransactionID: txnID,
			AccountID:     in.AccountID,
			Debit:         in.Debit,
			Credit:        in.Credit,
			CreatedAt:     s.now(),
		})
	}
	t.Entries = entries
	s.transactions[txnID] = t
	return append([]ledger.Entry(nil), entries...), nil
}

func (s *txStore) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return ledger.Transaction{}, shared.ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (s *txStore) listTransactions(filter func(ledger.Transaction) bool) []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if filter != nil && !filter(t) {
			continue
		}
		out = append(out, cloneTransaction(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *txStore) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.listTransactions(nil), nil
}

func (s *txStore) ListTransactionsByType(ctx context.Context, typ ledger.TransactionType) ([]ledger.Transaction, error) {
	return s.listTransactions(func(t ledger.Transaction) bool { return t.Type == typ }), nil
}

func (s *txStore) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := s.transactions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *txStore) SetLocked(ctx context.Context, id int64, locked bool) error {
	t, ok := s.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.IsLocked = locked
	t.UpdatedAt = s.now()
	s.transactions[id] = t
	return nil
}

func (s *txStore) SetApproval(ctx context.Context, id, approverID int64, at time.Time) error {
	t, ok := s.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	if t.ApprovedBy != nil {
		return shared.ErrAlreadyApproved
	}
	t.ApprovedBy = &approverID
	t.ApprovedAt = &at
	t.UpdatedAt = s.now()
	s.transactions[id] = t
	return nil
}

func (s *txStore) GetAccount(ctx context.Context, id int64) (coa.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return coa.Account{}, fmt.Errorf("%w: account %d", shared.ErrValidation, id)
	}
	return cloneAccount(a), nil
}

func (s *txStore) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal, expectVersion int64) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return shared.ErrVersionConflict
	}
	if a.BalanceVersion != expectVersion {
		return shared.ErrVersionConflict
	}
	a.CurrentBalance = balance
	a.BalanceVersion++
	a.UpdatedAt = s.now()
	s.accounts[accountID] = a
	return nil
}

// --- reports.Repository ---

func (s *Store) ActiveAccounts(ctx context.Context) ([]coa.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAccountsLocked(true), nil
}

func (s *Store) CashMovements(ctx context.Context, start, end time.Time) ([]reports.CashMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var movements []reports.CashMovement
	for _, t := range s.transactions {
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		inflow, outflow := decimal.Zero, decimal.Zero
		touched := false
		for _, e := range t.Entries {
			a, ok := s.accounts[e.AccountID]
			if !ok || !a.IsCashLike() {
				continue
			}
			touched = true
			inflow = inflow.Add(e.Debit)
			outflow = outflow.Add(e.Credit)
		}
		if !touched {
			continue
		}
		movements = append(movements, reports.CashMovement{
			TransactionID: t.ID,
			Reference:     t.ReferenceNumber,
			Description:   t.Description,
			Date:          t.Date,
			Type:          t.Type,
			Source:        t.Source,
			Inflow:        inflow,
			Outflow:       outflow,
		})
	}
	sort.Slice(movements, func(i, j int) bool {
		if !movements[i].Date.Equal(movements[j].Date) {
			return movements[i].Date.Before(movements[j].Date)
		}
		return movements[i].TransactionID < movements[j].TransactionID
	})
	return movements, nil
}

func (s *Store) OutstandingInvoices(ctx context.Context, asOf time.Time, payable bool) ([]reports.OutstandingInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subtype := coa.SubtypeReceivable
	if payable {
		subtype = coa.SubtypePayable
	}
	var invoices []reports.OutstandingInvoice
	for _, t := range s.transactions {
		src, ok := t.Source.(ledger.InvoiceSource)
		if !ok || t.Type != ledger.TypeInvoice || t.Date.After(asOf) {
			continue
		}
		total := decimal.Zero
		for _, e := range t.Entries {
			a, found := s.accounts[e.AccountID]
			if !found || a.Subtype != subtype {
				continue
			}
			if payable {
				total = total.Add(e.Credit)
			} else {
				total = total.Add(e.Debit)
			}
		}
		if total.IsZero() {
			continue
		}
		settled := decimal.Zero
		for _, p := range s.transactions {
			if p.Type != ledger.TypePayment || p.Date.After(asOf) {
				continue
			}
			if psrc, isInv := p.Source.(ledger.InvoiceSource); isInv && psrc.InvoiceID == src.InvoiceID {
				settled = settled.Add(p.TotalAmount)
			}
		}
		invoices = append(invoices, reports.OutstandingInvoice{
			InvoiceID: src.InvoiceID,
			Reference: t.ReferenceNumber,
			DueDate:   src.DueDate,
			Total:     total,
			Settled:   settled,
		})
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].DueDate.Before(invoices[j].DueDate) })
	return invoices, nil
}

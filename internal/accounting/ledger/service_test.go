package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/memstore"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	_ "github.com/aurum-erp/aurum-erp/testing"
)

type fixture struct {
	store    *memstore.Store
	accounts *coa.Service
	ledger   *ledger.Service

	cash    coa.Account
	parent  coa.Account
	revenue coa.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	accounts := coa.NewService(store)
	svc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)

	parent, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1", Name: "Current Assets", Type: coa.AccountTypeAsset, Currency: "SAR",
	})
	require.NoError(t, err)
	cash, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Subtype: coa.SubtypeCash,
		ParentID: &parent.ID, Currency: "SAR", OpeningBalance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	revenue, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "4.1", Name: "Gold Sales", Type: coa.AccountTypeRevenue, Currency: "SAR",
	})
	require.NoError(t, err)

	return &fixture{store: store, accounts: accounts, ledger: svc, cash: cash, parent: parent, revenue: revenue}
}

func (f *fixture) draft(amount int64) ledger.Draft {
	return ledger.Draft{
		Description:  "cash sale",
		Date:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:         ledger.TypeJournal,
		TotalAmount:  decimal.NewFromInt(amount),
		Currency:     "SAR",
		ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: f.cash.ID, Debit: decimal.NewFromInt(amount)},
			{AccountID: f.revenue.ID, Credit: decimal.NewFromInt(amount)},
		},
	}
}

func (f *fixture) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	account, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return account.CurrentBalance
}

func TestCreateTransactionAppliesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)
	require.NotEmpty(t, txn.ReferenceNumber)
	require.Len(t, txn.Entries, 2)

	// Cash opened at 1000, a 500 debit lands at 1500; the parent rolls
	// the same delta up, revenue's credit raises its normal-side balance.
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1500)))
	require.True(t, f.balance(t, f.parent.ID).Equal(decimal.NewFromInt(500)))
	require.True(t, f.balance(t, f.revenue.ID).Equal(decimal.NewFromInt(500)))
}

func TestCreateTransactionRejectsUnbalanced(t *testing.T) {
	f := newFixture(t)
	d := f.draft(500)
	d.Entries[1].Credit = decimal.NewFromInt(300)

	_, err := f.ledger.CreateTransaction(context.Background(), d)
	require.ErrorIs(t, err, shared.ErrUnbalancedEntries)
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1000)))
}

func TestUpdateTransactionNetsDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)

	_, err = f.ledger.UpdateTransaction(ctx, txn.ID, f.draft(200))
	require.NoError(t, err)

	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1200)))
	require.True(t, f.balance(t, f.revenue.ID).Equal(decimal.NewFromInt(200)))
}

func TestUpdateLockedTransactionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Lock(ctx, txn.ID))

	_, err = f.ledger.UpdateTransaction(ctx, txn.ID, f.draft(200))
	require.ErrorIs(t, err, shared.ErrLockedTransaction)

	// A failed update leaves balances untouched.
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1500)))

	err = f.ledger.DeleteTransaction(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrLockedTransaction)
}

func TestDeleteTransactionReversesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)
	require.NoError(t, f.ledger.DeleteTransaction(ctx, txn.ID))

	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1000)))
	require.True(t, f.balance(t, f.parent.ID).Equal(decimal.Zero))
	require.True(t, f.balance(t, f.revenue.ID).Equal(decimal.Zero))

	_, err = f.ledger.Get(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLockUnlockTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Lock(ctx, txn.ID))
	require.ErrorIs(t, f.ledger.Lock(ctx, txn.ID), shared.ErrNoOp)
	require.NoError(t, f.ledger.Unlock(ctx, txn.ID))
	require.ErrorIs(t, f.ledger.Unlock(ctx, txn.ID), shared.ErrNoOp)
}

func TestApproveIsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Approve(ctx, txn.ID, 42))
	require.ErrorIs(t, f.ledger.Approve(ctx, txn.ID, 43), shared.ErrAlreadyApproved)

	got, err := f.ledger.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedBy)
	require.Equal(t, int64(42), *got.ApprovedBy)

	// Approval does not lock; deletion of an approved transaction works.
	require.NoError(t, f.ledger.DeleteTransaction(ctx, txn.ID))
}

func TestDuplicateCopiesEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.ledger.CreateTransaction(ctx, f.draft(500))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Lock(ctx, original.ID))
	require.NoError(t, f.ledger.Approve(ctx, original.ID, 42))

	copied, err := f.ledger.Duplicate(ctx, original.ID)
	require.NoError(t, err)
	require.NotEqual(t, original.ReferenceNumber, copied.ReferenceNumber)
	require.False(t, copied.IsLocked)
	require.Nil(t, copied.ApprovedBy)
	require.Len(t, copied.Entries, 2)

	// Both postings count: cash = 1000 + 500 + 500.
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(2000)))
}

// conflictRepo wraps the store and forces every balance update to report
// a version conflict, exhausting the retry budget.
type conflictRepo struct {
	inner ledger.RepositoryPort
}

type conflictTx struct {
	ledger.TxRepository
}

func (r *conflictRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return r.inner.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		return fn(ctx, &conflictTx{TxRepository: tx})
	})
}

func (t *conflictTx) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal, expectVersion int64) error {
	return shared.ErrVersionConflict
}

func TestCreateTransactionSurfacesContention(t *testing.T) {
	f := newFixture(t)
	svc := ledger.NewService(&conflictRepo{inner: f.store}, ledger.NewReferenceGenerator(), nil, nil)
	svc.WithRetry(2, time.Millisecond)

	_, err := svc.CreateTransaction(context.Background(), f.draft(500))
	require.ErrorIs(t, err, shared.ErrContention)
	require.False(t, errors.Is(err, shared.ErrVersionConflict))

	// The failed attempts must not leave partial records behind.
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(1000)))
	txns, err := f.ledger.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, txns)
}

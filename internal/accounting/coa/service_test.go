package coa_test

import (
	"context"
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

func register(t *testing.T, svc *coa.Service, code, name string, typ coa.AccountType, parentID *int64, opening int64) coa.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), coa.RegisterInput{
		Code: code, Name: name, Type: typ, ParentID: parentID,
		Currency: "SAR", OpeningBalance: decimal.NewFromInt(opening),
	})
	require.NoError(t, err)
	return account
}

func TestRegisterValidation(t *testing.T) {
	svc := coa.NewService(memstore.New())
	ctx := context.Background()

	cases := []struct {
		name string
		in   coa.RegisterInput
	}{
		{"empty code", coa.RegisterInput{Name: "Cash", Type: coa.AccountTypeAsset, Currency: "SAR"}},
		{"alpha code", coa.RegisterInput{Code: "cash", Name: "Cash", Type: coa.AccountTypeAsset, Currency: "SAR"}},
		{"missing name", coa.RegisterInput{Code: "1.1", Type: coa.AccountTypeAsset, Currency: "SAR"}},
		{"bad type", coa.RegisterInput{Code: "1.1", Name: "Cash", Type: "CASHFLOW", Currency: "SAR"}},
		{"missing currency", coa.RegisterInput{Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestRegisterRejectsDuplicateCode(t *testing.T) {
	svc := coa.NewService(memstore.New())
	register(t, svc, "1.1", "Cash", coa.AccountTypeAsset, nil, 0)

	_, err := svc.Register(context.Background(), coa.RegisterInput{
		Code: "1.1", Name: "Other Cash", Type: coa.AccountTypeAsset, Currency: "SAR",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRegisterRejectsMissingParent(t *testing.T) {
	svc := coa.NewService(memstore.New())
	missing := int64(99)
	_, err := svc.Register(context.Background(), coa.RegisterInput{
		Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, ParentID: &missing, Currency: "SAR",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReparentRejectsCycles(t *testing.T) {
	svc := coa.NewService(memstore.New())
	ctx := context.Background()

	root := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	mid := register(t, svc, "1.1", "Current", coa.AccountTypeAsset, &root.ID, 0)
	leaf := register(t, svc, "1.1.1", "Cash", coa.AccountTypeAsset, &mid.ID, 0)

	_, err := svc.Reparent(ctx, root.ID, &leaf.ID)
	require.ErrorIs(t, err, shared.ErrStructural)

	_, err = svc.Reparent(ctx, root.ID, &root.ID)
	require.ErrorIs(t, err, shared.ErrStructural)

	// Moving the leaf directly under the root is legal.
	moved, err := svc.Reparent(ctx, leaf.ID, &root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *moved.ParentID)

	// Detaching to a root account is legal too.
	detached, err := svc.Reparent(ctx, mid.ID, nil)
	require.NoError(t, err)
	require.Nil(t, detached.ParentID)
}

func TestDeleteGuards(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	ctx := context.Background()

	parent := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	cash := register(t, svc, "1.1", "Cash", coa.AccountTypeAsset, &parent.ID, 0)
	sales := register(t, svc, "4.1", "Sales", coa.AccountTypeRevenue, nil, 0)

	system, err := svc.Register(ctx, coa.RegisterInput{
		Code: "9.9", Name: "Retained Earnings", Type: coa.AccountTypeEquity, Currency: "SAR", IsSystem: true,
	})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, system.ID), shared.ErrConflict)

	require.ErrorIs(t, svc.Delete(ctx, parent.ID), shared.ErrConflict)

	txn, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Type: ledger.TypeJournal,
		TotalAmount: decimal.NewFromInt(100), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(100)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, cash.ID), shared.ErrConflict)

	// Once history is gone the account can be removed.
	require.NoError(t, ledgerSvc.DeleteTransaction(ctx, txn.ID))
	require.NoError(t, svc.Delete(ctx, cash.ID))
	require.NoError(t, svc.Delete(ctx, parent.ID))
}

func TestDeactivateKeepsHistory(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ctx := context.Background()

	cash := register(t, svc, "1.1", "Cash", coa.AccountTypeAsset, nil, 100)
	require.NoError(t, svc.Deactivate(ctx, cash.ID))

	got, err := svc.Get(ctx, cash.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestComputeBalanceRollsUpChildren(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	ctx := context.Background()

	root := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	cash := register(t, svc, "1.1", "Cash", coa.AccountTypeAsset, &root.ID, 1000)
	bank := register(t, svc, "1.2", "Bank", coa.AccountTypeAsset, &root.ID, 500)
	sales := register(t, svc, "4.1", "Sales", coa.AccountTypeRevenue, nil, 0)

	asOf := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: asOf.AddDate(0, 0, -1), Type: ledger.TypeJournal,
		TotalAmount: decimal.NewFromInt(250), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(250)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(250)},
		},
	})
	require.NoError(t, err)

	// Root = own (0) + cash (1000+250) + bank (500).
	balance, err := svc.ComputeBalance(ctx, root.ID, asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(1750)))

	// Entries after the cut-off are excluded.
	_, err = ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: asOf.AddDate(0, 0, 5), Type: ledger.TypeJournal,
		TotalAmount: decimal.NewFromInt(99), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: bank.ID, Debit: decimal.NewFromInt(99)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(99)},
		},
	})
	require.NoError(t, err)

	balance, err = svc.ComputeBalance(ctx, root.ID, asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(1750)))

	// Cached balances agree with the recomputed ground truth, for the
	// leaf and for the parent that rolls it up.
	later := asOf.AddDate(0, 1, 0)
	for _, id := range []int64{bank.ID, root.ID} {
		cached, err := svc.Get(ctx, id)
		require.NoError(t, err)
		computed, err := svc.ComputeBalance(ctx, id, later)
		require.NoError(t, err)
		require.True(t, cached.CurrentBalance.Equal(computed),
			"account %d cached %s != computed %s", id, cached.CurrentBalance, computed)
	}
}

func TestRegisterPushesOpeningsToAncestors(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ctx := context.Background()

	root := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	mid := register(t, svc, "1.1", "Current", coa.AccountTypeAsset, &root.ID, 0)
	register(t, svc, "1.1.1", "Cash", coa.AccountTypeAsset, &mid.ID, 1000)

	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []int64{mid.ID, root.ID} {
		cached, err := svc.Get(ctx, id)
		require.NoError(t, err)
		computed, err := svc.ComputeBalance(ctx, id, later)
		require.NoError(t, err)
		require.True(t, computed.Equal(decimal.NewFromInt(1000)))
		require.True(t, cached.CurrentBalance.Equal(computed),
			"account %d cached %s != computed %s", id, cached.CurrentBalance, computed)
	}
}

func TestReparentMovesCachedSubtreeBalance(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	ctx := context.Background()

	groupA := register(t, svc, "1", "Branch A", coa.AccountTypeAsset, nil, 0)
	groupB := register(t, svc, "2", "Branch B", coa.AccountTypeAsset, nil, 0)
	cash := register(t, svc, "1.1", "Cash", coa.AccountTypeAsset, &groupA.ID, 100)
	sales := register(t, svc, "4.1", "Sales", coa.AccountTypeRevenue, nil, 0)

	_, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Type: ledger.TypeJournal,
		TotalAmount: decimal.NewFromInt(500), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(500)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)

	_, err = svc.Reparent(ctx, cash.ID, &groupB.ID)
	require.NoError(t, err)

	// The subtree's full cached contribution (opening + entries) leaves
	// the old chain and lands on the new one.
	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id   int64
		want int64
	}{
		{groupA.ID, 0},
		{groupB.ID, 600},
		{cash.ID, 600},
	} {
		cached, err := svc.Get(ctx, tc.id)
		require.NoError(t, err)
		require.True(t, cached.CurrentBalance.Equal(decimal.NewFromInt(tc.want)),
			"account %d cached %s, want %d", tc.id, cached.CurrentBalance, tc.want)
		computed, err := svc.ComputeBalance(ctx, tc.id, later)
		require.NoError(t, err)
		require.True(t, cached.CurrentBalance.Equal(computed),
			"account %d cached %s != computed %s", tc.id, cached.CurrentBalance, computed)
	}

	// Detaching to the root level drains the new chain again.
	_, err = svc.Reparent(ctx, cash.ID, nil)
	require.NoError(t, err)
	drained, err := svc.Get(ctx, groupB.ID)
	require.NoError(t, err)
	require.True(t, drained.CurrentBalance.IsZero())
}

func TestDeleteRemovesOpeningFromAncestors(t *testing.T) {
	store := memstore.New()
	svc := coa.NewService(store)
	ctx := context.Background()

	parent := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	gold := register(t, svc, "1.4", "Gold Inventory", coa.AccountTypeAsset, &parent.ID, 300)

	cached, err := svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.True(t, cached.CurrentBalance.Equal(decimal.NewFromInt(300)))

	require.NoError(t, svc.Delete(ctx, gold.ID))

	cached, err = svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.True(t, cached.CurrentBalance.IsZero())
	computed, err := svc.ComputeBalance(ctx, parent.ID, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, computed.IsZero())
}

func TestAncestorsNearestFirst(t *testing.T) {
	svc := coa.NewService(memstore.New())
	ctx := context.Background()

	root := register(t, svc, "1", "Assets", coa.AccountTypeAsset, nil, 0)
	mid := register(t, svc, "1.1", "Current", coa.AccountTypeAsset, &root.ID, 0)
	leaf := register(t, svc, "1.1.1", "Cash", coa.AccountTypeAsset, &mid.ID, 0)

	chain, err := svc.Ancestors(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, mid.ID, chain[0].ID)
	require.Equal(t, root.ID, chain[1].ID)
}

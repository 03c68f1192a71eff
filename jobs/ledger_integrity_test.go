package jobs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/memstore"
	_ "github.com/aurum-erp/aurum-erp/testing"
)

func TestLedgerIntegritySweepFlagsDrift(t *testing.T) {
	store := memstore.New()
	accounts := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	ctx := context.Background()

	cash, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset,
		Currency: "SAR", OpeningBalance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	sales, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "4.1", Name: "Sales", Type: coa.AccountTypeRevenue, Currency: "SAR",
	})
	require.NoError(t, err)

	_, err = ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: time.Now().AddDate(0, 0, -1), Type: ledger.TypeJournal,
		TotalAmount: decimal.NewFromInt(500), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(500)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	job := NewLedgerIntegrityJob(accounts, store, logger)

	// Clean sweep flags nothing.
	task, err := NewLedgerIntegrityTask(false)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	require.NotContains(t, buf.String(), "ledger balance drift")

	// Corrupt the cached balance the way a misbehaving writer would.
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		account, err := tx.GetAccount(ctx, cash.ID)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, cash.ID, decimal.NewFromInt(9999), account.BalanceVersion)
	}))

	buf.Reset()
	require.NoError(t, job.Handle(ctx, task))
	out := buf.String()
	require.Contains(t, out, "ledger balance drift")
	require.Contains(t, out, "code=1.1")
	require.Contains(t, out, "drifted=1")
}

func TestLedgerIntegrityRejectsBadPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	job := NewLedgerIntegrityJob(coa.NewService(memstore.New()), memstore.New(), logger)

	task := asynq.NewTask(TaskLedgerIntegrity, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLedgerRecurringSkipsUnlockedCopies(t *testing.T) {
	store := memstore.New()
	accounts := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	ctx := context.Background()

	rent, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "5.1", Name: "Rent", Type: coa.AccountTypeExpense, Currency: "SAR",
	})
	require.NoError(t, err)
	cash, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Currency: "SAR",
	})
	require.NoError(t, err)

	template, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Date: time.Now().AddDate(0, -1, 0), Type: ledger.TypeRecurring,
		TotalAmount: decimal.NewFromInt(3000), Currency: "SAR", ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: rent.ID, Debit: decimal.NewFromInt(3000)},
			{AccountID: cash.ID, Credit: decimal.NewFromInt(3000)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, ledgerSvc.Lock(ctx, template.ID))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	job := NewLedgerRecurringJob(ledgerSvc, logger)

	task, err := NewLedgerRecurringTask()
	require.NoError(t, err)

	require.NoError(t, job.Handle(ctx, task))
	recurring, err := ledgerSvc.ListByType(ctx, ledger.TypeRecurring)
	require.NoError(t, err)
	require.Len(t, recurring, 2)

	// The materialized copy is unlocked, so a second sweep only posts
	// from the template again.
	require.NoError(t, job.Handle(ctx, task))
	recurring, err = ledgerSvc.ListByType(ctx, ledger.TypeRecurring)
	require.NoError(t, err)
	require.Len(t, recurring, 3)
}

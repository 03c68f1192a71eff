// Command smoke-ledger seeds an in-memory ledger, posts a handful of
// balanced transactions and prints the resulting trial balance. It is a
// quick end-to-end sanity check that needs no Postgres or Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/memstore"
	"github.com/aurum-erp/aurum-erp/internal/accounting/reports"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Default().Error("smoke run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	store := memstore.New()
	accounts := coa.NewService(store)
	ledgerSvc := ledger.NewService(store, ledger.NewReferenceGenerator(), nil, nil)
	reportSvc := reports.NewService(store, reports.NewCache(nil, 0))

	cash, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Subtype: coa.SubtypeCash,
		Currency: "SAR", OpeningBalance: decimal.NewFromInt(1000),
	})
	if err != nil {
		return err
	}
	receivable, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "1.2", Name: "Accounts Receivable", Type: coa.AccountTypeAsset,
		Subtype: coa.SubtypeReceivable, Currency: "SAR",
	})
	if err != nil {
		return err
	}
	sales, err := accounts.Register(ctx, coa.RegisterInput{
		Code: "4.1", Name: "Gold Sales", Type: coa.AccountTypeRevenue, Currency: "SAR",
	})
	if err != nil {
		return err
	}

	today := time.Now().Truncate(24 * time.Hour)
	invoiceID := uuid.New()

	// Credit sale: receivable up, revenue up.
	if _, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Description:  "21k gold necklace",
		Date:         today,
		Type:         ledger.TypeInvoice,
		Source:       ledger.InvoiceSource{InvoiceID: invoiceID, DueDate: today.AddDate(0, 1, 0)},
		TotalAmount:  decimal.NewFromInt(750),
		Currency:     "SAR",
		ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: receivable.ID, Debit: decimal.NewFromInt(750)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(750)},
		},
	}); err != nil {
		return err
	}

	// Partial settlement in cash.
	if _, err := ledgerSvc.CreateTransaction(ctx, ledger.Draft{
		Description:  "invoice settlement",
		Date:         today,
		Type:         ledger.TypePayment,
		Source:       ledger.InvoiceSource{InvoiceID: invoiceID, DueDate: today.AddDate(0, 1, 0)},
		TotalAmount:  decimal.NewFromInt(500),
		Currency:     "SAR",
		ExchangeRate: decimal.NewFromInt(1),
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(500)},
			{AccountID: receivable.ID, Credit: decimal.NewFromInt(500)},
		},
	}); err != nil {
		return err
	}

	tb, err := reportSvc.TrialBalance(ctx, today)
	if err != nil {
		return err
	}

	fmt.Printf("trial balance as of %s\n", tb.AsOf.Format("2006-01-02"))
	for _, group := range tb.Groups {
		for _, row := range group.Rows {
			fmt.Printf("  %-6s %-22s debit=%-10s credit=%s\n", row.Code, row.Name, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
		}
	}
	fmt.Printf("totals: debit=%s credit=%s\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if !tb.TotalDebit.Equal(tb.TotalCredit) {
		return fmt.Errorf("trial balance out of balance: %s != %s", tb.TotalDebit, tb.TotalCredit)
	}
	return nil
}

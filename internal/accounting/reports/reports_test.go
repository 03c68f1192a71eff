package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	_ "github.com/aurum-erp/aurum-erp/testing"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleRows() []AccountRow {
	return []AccountRow{
		{AccountID: 1, Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Opening: dec(1000), Debit: dec(500), Credit: dec(200)},
		{AccountID: 2, Code: "1.2", Name: "Receivables", Type: coa.AccountTypeAsset, Opening: dec(0), Debit: dec(300), Credit: dec(0)},
		{AccountID: 3, Code: "2.1", Name: "Payables", Type: coa.AccountTypeLiability, Opening: dec(400), Debit: dec(0), Credit: dec(100)},
		{AccountID: 4, Code: "3.1", Name: "Capital", Type: coa.AccountTypeEquity, Opening: dec(600), Debit: dec(0), Credit: dec(0)},
		{AccountID: 5, Code: "4.1", Name: "Gold Sales", Type: coa.AccountTypeRevenue, Opening: dec(0), Debit: dec(0), Credit: dec(800)},
		{AccountID: 6, Code: "5.1", Name: "Rent", Type: coa.AccountTypeExpense, Opening: dec(0), Debit: dec(300), Credit: dec(0)},
	}
}

func TestBuildTrialBalanceBalances(t *testing.T) {
	asOf := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	tb := BuildTrialBalance(asOf, sampleRows())

	if !tb.TotalDebit.Equal(tb.TotalCredit) {
		t.Fatalf("trial balance out of balance: debit %s credit %s", tb.TotalDebit, tb.TotalCredit)
	}
	if !tb.TotalDebit.Equal(dec(1900)) {
		t.Fatalf("total debit = %s, want 1900", tb.TotalDebit)
	}
	if len(tb.Groups) != 5 {
		t.Fatalf("got %d groups, want 5", len(tb.Groups))
	}
	for i := 1; i < len(tb.Groups); i++ {
		if tb.Groups[i-1].Key >= tb.Groups[i].Key {
			t.Fatalf("groups not sorted: %s before %s", tb.Groups[i-1].Key, tb.Groups[i].Key)
		}
	}
}

func TestBuildTrialBalanceFlipsNegativeClosings(t *testing.T) {
	// An asset driven below zero shows in the credit column, positive.
	rows := []AccountRow{
		{AccountID: 1, Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Opening: dec(100), Debit: dec(0), Credit: dec(250)},
		{AccountID: 2, Code: "4.1", Name: "Sales", Type: coa.AccountTypeRevenue, Opening: dec(0), Debit: dec(150), Credit: dec(0)},
	}
	tb := BuildTrialBalance(time.Now(), rows)

	cash := tb.Groups[0].Rows[0]
	if !cash.Debit.IsZero() || !cash.Credit.Equal(dec(150)) {
		t.Fatalf("overdrawn asset: debit %s credit %s, want column flip to credit 150", cash.Debit, cash.Credit)
	}
	sales := tb.Groups[1].Rows[0]
	if !sales.Credit.IsZero() || !sales.Debit.Equal(dec(150)) {
		t.Fatalf("negative revenue: debit %s credit %s, want column flip to debit 150", sales.Debit, sales.Credit)
	}
}

func TestBuildBalanceSheetTiesOut(t *testing.T) {
	asOf := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	bs := BuildBalanceSheet(asOf, sampleRows())

	// Assets 1300+300, liabilities 500, equity 600 + net income 500.
	if !bs.Assets.Total.Equal(dec(1600)) {
		t.Fatalf("assets total = %s, want 1600", bs.Assets.Total)
	}
	if !bs.TotalLiabilitiesAndEquity.Equal(bs.Assets.Total) {
		t.Fatalf("balance sheet does not tie out: assets %s vs L+E %s", bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
	}
	last := bs.Equity.Lines[len(bs.Equity.Lines)-1]
	if last.Label != "Accumulated Net Income" || !last.Amount.Equal(dec(500)) {
		t.Fatalf("net income line = %q %s, want Accumulated Net Income 500", last.Label, last.Amount)
	}
}

func TestBuildIncomeStatementIgnoresOpenings(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := []AccountRow{
		{AccountID: 1, Code: "4.1", Name: "Sales", Type: coa.AccountTypeRevenue, Opening: dec(9999), Debit: dec(50), Credit: dec(800)},
		{AccountID: 2, Code: "5.1", Name: "Rent", Type: coa.AccountTypeExpense, Opening: dec(9999), Debit: dec(300), Credit: dec(0)},
		{AccountID: 3, Code: "5.2", Name: "Idle", Type: coa.AccountTypeExpense, Opening: dec(0), Debit: dec(0), Credit: dec(0)},
		{AccountID: 4, Code: "1.1", Name: "Cash", Type: coa.AccountTypeAsset, Opening: dec(0), Debit: dec(450), Credit: dec(0)},
	}
	is := BuildIncomeStatement(start, end, rows)

	if !is.Revenue.Total.Equal(dec(750)) {
		t.Fatalf("revenue = %s, want 750", is.Revenue.Total)
	}
	if !is.Expense.Total.Equal(dec(300)) {
		t.Fatalf("expense = %s, want 300", is.Expense.Total)
	}
	if !is.NetProfit.Equal(dec(450)) {
		t.Fatalf("net profit = %s, want 450", is.NetProfit)
	}
	// Zero-movement and non-P&L accounts produce no lines.
	if len(is.Expense.Lines) != 1 {
		t.Fatalf("got %d expense lines, want 1", len(is.Expense.Lines))
	}
}

func TestClassifyActivity(t *testing.T) {
	cases := []struct {
		typ    ledger.TransactionType
		source ledger.SourceRef
		want   Activity
	}{
		{ledger.TypePayment, ledger.InvoiceSource{InvoiceID: uuid.New()}, ActivityOperating},
		{ledger.TypeRecurring, ledger.RecurringInvoiceSource{ScheduleID: uuid.New()}, ActivityOperating},
		{ledger.TypeJournal, ledger.AssetDisposalSource{AssetID: uuid.New()}, ActivityInvesting},
		// Without a source document the transaction type decides.
		{ledger.TypePayment, ledger.ManualSource{}, ActivityOperating},
		{ledger.TypeInvoice, ledger.ManualSource{}, ActivityOperating},
		{ledger.TypeAdjustment, ledger.ManualSource{}, ActivityOperating},
		{ledger.TypeJournal, ledger.ManualSource{}, ActivityFinancing},
	}
	for _, tc := range cases {
		if got := ClassifyActivity(tc.typ, tc.source); got != tc.want {
			t.Fatalf("ClassifyActivity(%s, %T) = %s, want %s", tc.typ, tc.source, got, tc.want)
		}
	}
}

func TestBuildCashFlowStatement(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	movements := []CashMovement{
		{TransactionID: 3, Reference: "TXN-C", Date: start.AddDate(0, 0, 20), Type: ledger.TypeJournal, Source: ledger.ManualSource{}, Inflow: dec(1000), Outflow: dec(0)},
		{TransactionID: 1, Reference: "TXN-A", Date: start.AddDate(0, 0, 5), Type: ledger.TypePayment, Source: ledger.InvoiceSource{InvoiceID: uuid.New()}, Inflow: dec(500), Outflow: dec(0)},
		{TransactionID: 2, Reference: "TXN-B", Date: start.AddDate(0, 0, 10), Type: ledger.TypeJournal, Source: ledger.AssetDisposalSource{AssetID: uuid.New()}, Inflow: dec(0), Outflow: dec(200)},
	}
	cf := BuildCashFlowStatement(start, end, movements)

	if !cf.Operating.Net.Equal(dec(500)) {
		t.Fatalf("operating net = %s, want 500", cf.Operating.Net)
	}
	if !cf.Investing.Net.Equal(dec(-200)) {
		t.Fatalf("investing net = %s, want -200", cf.Investing.Net)
	}
	if !cf.Financing.Net.Equal(dec(1000)) {
		t.Fatalf("financing net = %s, want 1000", cf.Financing.Net)
	}
	if !cf.NetChange.Equal(dec(1300)) {
		t.Fatalf("net change = %s, want 1300", cf.NetChange)
	}
}

func TestBuildAgingBuckets(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	invoices := []OutstandingInvoice{
		{InvoiceID: uuid.New(), Reference: "TXN-1", DueDate: asOf.AddDate(0, 0, 10), Total: dec(100)},
		{InvoiceID: uuid.New(), Reference: "TXN-2", DueDate: asOf.AddDate(0, 0, -15), Total: dec(200)},
		{InvoiceID: uuid.New(), Reference: "TXN-3", DueDate: asOf.AddDate(0, 0, -45), Total: dec(300), Settled: dec(100)},
		{InvoiceID: uuid.New(), Reference: "TXN-4", DueDate: asOf.AddDate(0, 0, -75), Total: dec(400)},
		{InvoiceID: uuid.New(), Reference: "TXN-5", DueDate: asOf.AddDate(0, 0, -120), Total: dec(500)},
		// Fully settled, must not appear anywhere.
		{InvoiceID: uuid.New(), Reference: "TXN-6", DueDate: asOf.AddDate(0, 0, -120), Total: dec(600), Settled: dec(600)},
	}
	report := BuildAging(asOf, invoices)

	want := []int64{100, 200, 200, 400, 500}
	if len(report.Buckets) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(report.Buckets), len(want))
	}
	for i, w := range want {
		if !report.Buckets[i].Amount.Equal(dec(w)) {
			t.Fatalf("bucket %q = %s, want %d", report.Buckets[i].Label, report.Buckets[i].Amount, w)
		}
	}
	if !report.Total.Equal(dec(1400)) {
		t.Fatalf("total = %s, want 1400", report.Total)
	}
}

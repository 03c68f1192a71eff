package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
)

// Repository sources the raw aggregates reports are built from.
type Repository interface {
	ActiveAccounts(ctx context.Context) ([]coa.Account, error)
	EntrySums(ctx context.Context, from, to *time.Time) (map[int64]coa.EntrySum, error)
	CashMovements(ctx context.Context, start, end time.Time) ([]CashMovement, error)
	// OutstandingInvoices returns invoice-linked transactions whose
	// entries touch receivable (payable=false) or payable accounts,
	// with payments up to asOf netted into Settled.
	OutstandingInvoices(ctx context.Context, asOf time.Time, payable bool) ([]OutstandingInvoice, error)
}

// Service produces financial reports. It is strictly read-only.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires the repository with the cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

const dateKey = "2006-01-02"

// accountRows assembles per-account own aggregates for a window.
func (s *Service) accountRows(ctx context.Context, from, to *time.Time) ([]AccountRow, error) {
	var accounts []coa.Account
	var sums map[int64]coa.EntrySum
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.repo.ActiveAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sums, err = s.repo.EntrySums(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rows := make([]AccountRow, 0, len(accounts))
	for _, a := range accounts {
		sum := sums[a.ID]
		rows = append(rows, AccountRow{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			Type:      a.Type,
			Opening:   a.OpeningBalance,
			Debit:     sum.Debit,
			Credit:    sum.Credit,
		})
	}
	return rows, nil
}

// TrialBalance lists every active account's balance as of a date.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "tb", asOf.Format(dateKey))
	if err != nil {
		return TrialBalance{}, err
	}
	var report TrialBalance
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.accountRows(ctx, nil, &asOf)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(asOf, rows), nil
	})
	return report, err
}

// BalanceSheet reports assets against liabilities plus equity.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "bs", asOf.Format(dateKey))
	if err != nil {
		return BalanceSheet{}, err
	}
	var report BalanceSheet
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.accountRows(ctx, nil, &asOf)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(asOf, rows), nil
	})
	return report, err
}

// IncomeStatement reports revenue and expense movements inside a range.
func (s *Service) IncomeStatement(ctx context.Context, start, end time.Time) (IncomeStatement, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "is", start.Format(dateKey), end.Format(dateKey))
	if err != nil {
		return IncomeStatement{}, err
	}
	var report IncomeStatement
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		rows, err := s.accountRows(ctx, &start, &end)
		if err != nil {
			return nil, err
		}
		return BuildIncomeStatement(start, end, rows), nil
	})
	return report, err
}

// CashFlowStatement reports cash and bank movements inside a range.
func (s *Service) CashFlowStatement(ctx context.Context, start, end time.Time) (CashFlowStatement, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "cf", start.Format(dateKey), end.Format(dateKey))
	if err != nil {
		return CashFlowStatement{}, err
	}
	var report CashFlowStatement
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		movements, err := s.repo.CashMovements(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return BuildCashFlowStatement(start, end, movements), nil
	})
	return report, err
}

// AgedReceivables buckets unsettled customer invoices by overdue age.
func (s *Service) AgedReceivables(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.aging(ctx, asOf, false)
}

// AgedPayables buckets unsettled supplier invoices by overdue age.
func (s *Service) AgedPayables(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.aging(ctx, asOf, true)
}

func (s *Service) aging(ctx context.Context, asOf time.Time, payable bool) (AgingReport, error) {
	prefix := "aging_ar"
	if payable {
		prefix = "aging_ap"
	}
	key, err := s.cache.BuildKey(ctx, "reports", prefix, asOf.Format(dateKey))
	if err != nil {
		return AgingReport{}, err
	}
	var report AgingReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		invoices, err := s.repo.OutstandingInvoices(ctx, asOf, payable)
		if err != nil {
			return nil, err
		}
		return BuildAging(asOf, invoices), nil
	})
	return report, err
}

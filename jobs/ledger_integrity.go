package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	jobmetrics "github.com/aurum-erp/aurum-erp/internal/jobs"
)

// LedgerIntegrityJob recomputes each account's balance from its entries
// and children and compares it with the cached record. Drift is logged,
// never auto-corrected; the ledger service stays the only balance writer.
type LedgerIntegrityJob struct {
	accounts *coa.Service
	repo     coa.Repository
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	now      func() time.Time
}

// NewLedgerIntegrityJob wires the integrity sweep.
func NewLedgerIntegrityJob(accounts *coa.Service, repo coa.Repository, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{accounts: accounts, repo: repo, logger: logger, now: time.Now}
}

// WithMetrics attaches job run instrumentation.
func (j *LedgerIntegrityJob) WithMetrics(m *jobmetrics.Metrics) *LedgerIntegrityJob {
	j.metrics = m
	return j
}

// Handle processes a TaskLedgerIntegrity task.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track(TaskLedgerIntegrity).End(j.run(ctx, t))
}

func (j *LedgerIntegrityJob) run(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	accounts, err := j.repo.List(ctx, payload.OnlyActive)
	if err != nil {
		return err
	}
	asOf := j.now()

	var drifted int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	results := make(chan int64, len(accounts))
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			computed, err := j.accounts.ComputeBalance(gctx, account.ID, asOf)
			if err != nil {
				return err
			}
			if !computed.Equal(account.CurrentBalance) {
				j.logger.Warn("ledger balance drift",
					slog.Int64("account_id", account.ID),
					slog.String("code", account.Code),
					slog.String("cached", account.CurrentBalance.String()),
					slog.String("computed", computed.String()))
				results <- account.ID
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)
	for range results {
		drifted++
	}
	j.metrics.AddDrift(drifted)

	j.logger.Info("ledger integrity sweep finished",
		slog.Int("accounts", len(accounts)),
		slog.Int("drifted", drifted))
	return nil
}

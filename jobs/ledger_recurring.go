package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	jobmetrics "github.com/aurum-erp/aurum-erp/internal/jobs"
)

// LedgerRecurringJob materializes recurring template transactions. A
// template is a locked RECURRING transaction; duplicates come out
// unlocked with today's date, so copies are never templates themselves.
type LedgerRecurringJob struct {
	ledger  *ledger.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewLedgerRecurringJob wires the recurring materializer.
func NewLedgerRecurringJob(ledgerSvc *ledger.Service, logger *slog.Logger) *LedgerRecurringJob {
	return &LedgerRecurringJob{ledger: ledgerSvc, logger: logger}
}

// WithMetrics attaches job run instrumentation.
func (j *LedgerRecurringJob) WithMetrics(m *jobmetrics.Metrics) *LedgerRecurringJob {
	j.metrics = m
	return j
}

// Handle processes a TaskLedgerRecurring task.
func (j *LedgerRecurringJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track(TaskLedgerRecurring).End(j.run(ctx))
}

func (j *LedgerRecurringJob) run(ctx context.Context) error {
	templates, err := j.ledger.ListByType(ctx, ledger.TypeRecurring)
	if err != nil {
		return err
	}

	var posted, skipped int
	for _, template := range templates {
		if !template.IsLocked {
			skipped++
			continue
		}
		copyTxn, err := j.ledger.Duplicate(ctx, template.ID)
		if err != nil {
			j.logger.Error("materialize recurring transaction",
				slog.Int64("template_id", template.ID),
				slog.Any("error", err))
			continue
		}
		posted++
		j.logger.Info("recurring transaction posted",
			slog.Int64("template_id", template.ID),
			slog.String("reference", copyTxn.ReferenceNumber))
	}

	j.logger.Info("recurring sweep finished",
		slog.Int("templates", len(templates)),
		slog.Int("posted", posted),
		slog.Int("skipped", skipped))
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/reports"
	"github.com/aurum-erp/aurum-erp/internal/app"
	jobmetrics "github.com/aurum-erp/aurum-erp/internal/jobs"
	"github.com/aurum-erp/aurum-erp/internal/platform/cache"
	"github.com/aurum-erp/aurum-erp/internal/platform/db"
	"github.com/aurum-erp/aurum-erp/internal/shared"
	"github.com/aurum-erp/aurum-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	accountRepo := coa.NewPGRepository(pool)
	accountService := coa.NewService(accountRepo)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), ledger.NewReferenceGenerator(), auditLogger, reportCache)

	jobMetrics := jobmetrics.NewMetrics(nil)
	integrityJob := jobs.NewLedgerIntegrityJob(accountService, accountRepo, logger).WithMetrics(jobMetrics)
	recurringJob := jobs.NewLedgerRecurringJob(ledgerService, logger).WithMetrics(jobMetrics)

	integrityTask, err := jobs.NewLedgerIntegrityTask(true)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	recurringTask, err := jobs.NewLedgerRecurringTask()
	if err != nil {
		logger.Error("build recurring task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskLedgerRecurring, Handler: recurringJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: recurringTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

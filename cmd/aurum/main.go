package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurum-erp/aurum-erp/internal/accounting"
	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/costcenters"
	"github.com/aurum-erp/aurum-erp/internal/accounting/currencies"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/reports"
	"github.com/aurum-erp/aurum-erp/internal/app"
	"github.com/aurum-erp/aurum-erp/internal/observability"
	"github.com/aurum-erp/aurum-erp/internal/platform/cache"
	"github.com/aurum-erp/aurum-erp/internal/platform/db"
	"github.com/aurum-erp/aurum-erp/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	accountRepo := coa.NewPGRepository(pool)
	accountService := coa.NewService(accountRepo)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, ledger.NewReferenceGenerator(), auditLogger, reportCache)
	ledgerService.WithMetrics(metrics)

	costCenterService := costcenters.NewService(costcenters.NewPGRepository(pool))
	currencyService := currencies.NewService(currencies.NewPGRepository(pool))
	reportService := reports.NewService(reports.NewPGRepository(pool), reportCache)

	financeHandler := accounting.NewHandler(logger, accountService, ledgerService, costCenterService, currencyService, reportService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountingHandler: financeHandler,
		Pool:              pool,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solemart/solemart/internal/app"
	"github.com/solemart/solemart/internal/catalog"
	"github.com/solemart/solemart/internal/ledger"
	"github.com/solemart/solemart/internal/platform/db"
	"github.com/solemart/solemart/internal/shared"
	"github.com/solemart/solemart/jobs"
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
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	seeder := &app.StockSeeder{}
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, seeder, auditLogger, logger)
	catalogAdapter := &app.CatalogAdapter{Service: catalogService}

	// The worker writes through the same service as the HTTP layer so scans
	// produce regular log entries and audit records. No stats cache here;
	// adjustments bump it from the API process.
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, catalogAdapter, auditLogger, idempotencyStore, nil, logger)
	seeder.Ledger = ledgerService

	scanner := jobs.NewLowStockScanner(ledgerService, catalogAdapter, logger)

	scanTask, err := jobs.NewLowStockScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(time.Now().UTC())
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeLowStockScan, Handler: scanner.Handler()},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, cfg.IdempotencyRetention, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

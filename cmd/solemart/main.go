package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/solemart/solemart/internal/app"
	"github.com/solemart/solemart/internal/catalog"
	"github.com/solemart/solemart/internal/ledger"
	"github.com/solemart/solemart/internal/observability"
	"github.com/solemart/solemart/internal/orders"
	"github.com/solemart/solemart/internal/platform/cache"
	"github.com/solemart/solemart/internal/platform/db"
	"github.com/solemart/solemart/internal/shared"
	"github.com/solemart/solemart/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stats cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	// Catalog and ledger reference each other: the catalog seeds stock
	// records on product creation, the ledger resolves product metadata.
	// The seeder is attached once both services exist.
	seeder := &app.StockSeeder{}
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, seeder, auditLogger, logger)
	catalogAdapter := &app.CatalogAdapter{Service: catalogService}

	var statsCache *ledger.StatsCache
	if redisClient != nil {
		statsCache = ledger.NewStatsCache(redisClient, cfg.StatsCacheTTL)
	}
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, catalogAdapter, auditLogger, idempotencyStore, statsCache, logger).
		WithMetrics(metrics)
	seeder.Ledger = ledgerService

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, ledgerService, catalogAdapter, auditLogger, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalog.NewHandler(logger, catalogService),
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		OrdersHandler:  orders.NewHandler(logger, ordersService),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}

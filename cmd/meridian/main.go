package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/shops"
	"github.com/meridian-erp/meridian-erp/internal/statistics"
	"github.com/meridian-erp/meridian-erp/jobs"
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
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	registry := batches.NewRegistry(batches.NewRepository(pool))
	batchesHandler := batches.NewHandler(logger, registry)

	shopsService := shops.NewService(shops.NewRepository(pool), logger)
	shopsHandler := shops.NewHandler(logger, shopsService)

	ledger := inventory.NewLedger()
	allocator := inventory.NewAllocator()
	inventoryService := inventory.NewService(inventory.NewRepository(pool), catalogService, registry, ledger, allocator, auditLogger, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	ordersService := orders.NewService(orders.NewRepository(pool), catalogService, shopsService, registry, ledger, allocator, auditLogger, idempotencyStore, jobsClient, logger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), catalogService, registry, ledger, auditLogger, idempotencyStore, jobsClient, logger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	statsCache := statistics.NewCache(redisClient, cfg.CacheTTL)
	statsService := statistics.NewService(statistics.NewRepository(pool), catalogService, inventoryService, statsCache, logger)
	statsHandler := statistics.NewHandler(logger, statsService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		AuthService:       authService,
		CatalogHandler:    catalogHandler,
		BatchesHandler:    batchesHandler,
		ShopsHandler:      shopsHandler,
		InventoryHandler:  inventoryHandler,
		OrdersHandler:     ordersHandler,
		PurchasingHandler: purchasingHandler,
		StatisticsHandler: statsHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if err := statsCache.ListenForInvalidation(groupCtx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}

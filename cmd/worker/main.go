package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/statistics"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	ledger := inventory.NewLedger()
	allocator := inventory.NewAllocator()
	inventoryService := inventory.NewService(inventory.NewRepository(pool), catalogService, nil, ledger, allocator, nil, logger)

	statsCache := statistics.NewCache(redisClient, cfg.CacheTTL)
	statsService := statistics.NewService(statistics.NewRepository(pool), catalogService, inventoryService, statsCache, logger)

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewStatisticsWarmupJob(statsService, logger, metrics)
	suggestionsJob := jobs.NewSuggestionsRecomputeJob(statsService, logger, metrics)
	invalidateJob := jobs.NewStatisticsInvalidateJob(statsService, logger, metrics)

	warmupTask, err := jobs.NewStatisticsWarmupTask(jobs.StatisticsWarmupPayload{Days: 30})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	suggestionsTask, err := jobs.NewSuggestionsRecomputeTask(jobs.SuggestionsPayload{})
	if err != nil {
		logger.Error("build suggestions task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStatisticsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskSuggestionsRecompute, Handler: suggestionsJob.Handle},
			{Type: jobs.TaskStatisticsInvalidate, Handler: invalidateJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.SuggestionsCron, Task: suggestionsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashflow/internal/app"
	"github.com/odyssey-erp/cashflow/internal/cashflow"
	jobmetrics "github.com/odyssey-erp/cashflow/internal/jobs"
	"github.com/odyssey-erp/cashflow/internal/platform/cache"
	"github.com/odyssey-erp/cashflow/internal/platform/db"
	"github.com/odyssey-erp/cashflow/jobs"
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
	if cfg.RedisAddr == "" {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ReadOnly: true})
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

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("timezone", slog.Any("error", err))
		os.Exit(1)
	}

	reportMetrics, err := cashflow.NewMetrics(nil)
	if err != nil {
		logger.Error("register report metrics", slog.Any("error", err))
		os.Exit(1)
	}
	repo := cashflow.NewPostgresRepository(pool)
	reportCache := cashflow.NewCache(redisClient, cfg.ReportCacheTTL)
	reportCache.WithLogger(logger)
	service := cashflow.NewService(repo, reportCache, reportMetrics, logger)
	service.WithNow(cfg.Clock())
	service.WithSlowThreshold(cfg.ReportSlowThreshold)
	service.WithBuildTimeout(cfg.AppRequestTimeout)

	cashflowJobs := jobs.NewCashflowJobs(service, repo, logger, jobmetrics.NewMetrics(nil))
	cashflowJobs.WithNow(cfg.Clock())

	warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  loc,
		Handlers:  cashflowJobs.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

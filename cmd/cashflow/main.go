package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/cashflow/cmd/cashflow/cli"
	"github.com/odyssey-erp/cashflow/internal/app"
	"github.com/odyssey-erp/cashflow/internal/cashflow"
	cashflowhttp "github.com/odyssey-erp/cashflow/internal/cashflow/http"
	"github.com/odyssey-erp/cashflow/internal/observability"
	"github.com/odyssey-erp/cashflow/internal/platform/cache"
	"github.com/odyssey-erp/cashflow/internal/platform/db"
	"github.com/odyssey-erp/cashflow/jobs"
)

const usage = `usage:
  cashflow [serve]                      start the HTTP API
  cashflow report --company <uuid> ...  print a report (see cashflow report -h)
  cashflow jobs trigger <warmup|invalidate>
  cashflow jobs stats
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		if app.InTestMode() {
			slog.Default().Info("test mode detected, skipping runtime startup")
			return cli.ExitOK
		}
		return serve(ctx, stop)
	case "report":
		return report(ctx, args, stdout, stderr)
	case "jobs":
		return jobsCommand(ctx, args, stdout, stderr)
	case "help":
		_, _ = fmt.Fprint(stdout, usage)
		return cli.ExitOK
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s", command, usage)
		return cli.ExitValidation
	}
}

type runtime struct {
	cfg     *app.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	repo    *cashflow.PostgresRepository
	cache   *cashflow.Cache
	service *cashflow.Service
	metrics *observability.Metrics
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}

	metrics := observability.NewMetrics()
	reportMetrics, err := cashflow.NewMetrics(metrics.Registerer())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("register report metrics: %w", err)
	}

	repo := cashflow.NewPostgresRepository(pool)
	reportCache := cashflow.NewCache(redisClient, cfg.ReportCacheTTL)
	reportCache.WithLogger(logger)
	service := cashflow.NewService(repo, reportCache, reportMetrics, logger)
	service.WithNow(cfg.Clock())
	service.WithSlowThreshold(cfg.ReportSlowThreshold)
	service.WithBuildTimeout(cfg.AppRequestTimeout)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		redis:   redisClient,
		repo:    repo,
		cache:   reportCache,
		service: service,
		metrics: metrics,
	}, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	rt.pool.Close()
}

func serve(ctx context.Context, stop context.CancelFunc) int {
	rt, err := bootstrap(ctx)
	if err != nil {
		slog.Default().Error("bootstrap", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if err := rt.cache.ListenForInvalidation(ctx, cashflow.BumpChannel); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	handler := cashflowhttp.NewHandler(logger, rt.service)
	handler.WithNow(cfg.Clock())
	handler.WithTimeout(cfg.AppRequestTimeout)

	var jobHandler *jobs.Handler
	if cfg.RedisAddr != "" {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CashflowHandler: handler,
		JobHandler:      jobHandler,
		Metrics:         rt.metrics,
		Ready: func(r *http.Request) error {
			return rt.pool.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return cli.ExitFailure
	}
	return cli.ExitOK
}

func report(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := cli.ParseReportFlags(args, stderr)
	if err != nil {
		return cli.ExitValidation
	}
	opts.Stdout, opts.Stderr = stdout, stderr

	rt, err := bootstrap(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "report: %v\n", err)
		return cli.ExitFailure
	}
	defer rt.Close()
	return cli.NewReportCLI(rt.service, rt.cfg.Clock()).ReportCommand(ctx, opts)
}

func jobsCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: load config: %v\n", err)
		return cli.ExitFailure
	}
	if cfg.RedisAddr == "" {
		_, _ = fmt.Fprintln(stderr, "jobs: REDIS_ADDR is required")
		return cli.ExitFailure
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()
	return jobsCLI.JobsCommand(ctx, args, stdout, stderr)
}

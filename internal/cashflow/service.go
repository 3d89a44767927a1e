package cashflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSlowThreshold = 2 * time.Second
	defaultBuildTimeout  = 30 * time.Second
)

// Service builds cash-flow reports: unify, balance, aggregate and format.
type Service struct {
	unifier  *Unifier
	balances *BalanceCalculator
	cache    *Cache
	metrics  *Metrics
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
	slow     time.Duration
	timeout  time.Duration
}

// NewService wires the engine over repo. cache and metrics may be nil.
func NewService(repo SourceRepository, cache *Cache, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		unifier:  NewSourceUnifier(repo),
		balances: NewBalanceCalculator(repo),
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		slow:     defaultSlowThreshold,
		timeout:  defaultBuildTimeout,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// WithSlowThreshold sets the duration above which a report build is logged.
func (s *Service) WithSlowThreshold(d time.Duration) {
	if d > 0 {
		s.slow = d
	}
}

// WithBuildTimeout bounds a shared report build independently of the
// callers waiting on it.
func (s *Service) WithBuildTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.now()
}

// Parse validates req against the service clock.
func (s *Service) Parse(req Request) (Query, error) {
	return ParseRequest(req, s.now())
}

// Report returns the formatted report for q. Identical concurrent requests
// share one build and finished reports are cached until the next bump.
//
// The shared build is detached from the caller that started it and bounded
// by the build timeout, so a caller going away only ends its own wait.
func (s *Service) Report(ctx context.Context, q Query) (Report, error) {
	if err := q.Params.Validate(); err != nil {
		return Report{}, err
	}
	key, err := s.cache.BuildKey(ctx, reportKey(q))
	if err != nil {
		s.logger.Warn("cashflow cache version unavailable", slog.Any("error", err))
		key = reportKey(q)
	}

	resultCh := s.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.cachedBuild(buildCtx, key, q)
	})
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	}
}

// cachedBuild serves q from the cache. Redis failures fall back to an
// uncached build; build failures are returned as they are.
func (s *Service) cachedBuild(ctx context.Context, key string, q Query) (Report, error) {
	if !s.cache.Enabled() {
		return s.build(ctx, q)
	}
	var (
		report   Report
		built    Report
		hasBuilt bool
		buildErr error
	)
	hit, err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		built, buildErr = s.build(ctx, q)
		hasBuilt = buildErr == nil
		return built, buildErr
	})
	if buildErr != nil {
		return Report{}, buildErr
	}
	if err != nil {
		s.logger.Warn("cashflow cache unavailable, building uncached",
			slog.String("key", key),
			slog.Any("error", err))
		if hasBuilt {
			return built, nil
		}
		return s.build(ctx, q)
	}
	s.metrics.recordCache(hit)
	return report, nil
}

// Build computes the report without the cache.
func (s *Service) Build(ctx context.Context, q Query) (Report, error) {
	if err := q.Params.Validate(); err != nil {
		return Report{}, err
	}
	return s.build(ctx, q)
}

func (s *Service) build(ctx context.Context, q Query) (Report, error) {
	start := time.Now()
	p := q.Params
	p.Period = p.Period.Normalize()

	var (
		events   []Event
		initial  decimal.Decimal
		accounts []AccountBalance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.unifier.UnifyMovements(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		initial, err = s.balances.ComputeInitialBalance(gctx, p.CompanyID, p.Period.Start, p.AccountIDs)
		return err
	})
	if q.IncludeBalances {
		g.Go(func() error {
			var err error
			accounts, err = s.balances.AccountBalances(gctx, p.CompanyID, p.Period, p.AccountIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("cashflow report failed",
			slog.String("company_id", p.CompanyID.String()),
			slog.Any("error", err))
		return Report{}, err
	}

	buckets, err := AggregateDaily(events, initial, p.StatusFilter, p.Period.Start, p.Period.End)
	if err != nil {
		return Report{}, err
	}
	report := FormatReport(buckets, initial, p.Period, q.Filters(), accounts)

	elapsed := time.Since(start)
	s.metrics.observeReport(q, len(events), elapsed)
	if elapsed > s.slow {
		s.logger.Warn("cashflow report slow",
			slog.String("company_id", p.CompanyID.String()),
			slog.String("start", p.Period.Start.Format(dateLayout)),
			slog.String("end", p.Period.End.Format(dateLayout)),
			slog.Int("events", len(events)),
			slog.Duration("elapsed", elapsed))
	}
	return report, nil
}

// Movements returns the unified events of the period without aggregation.
func (s *Service) Movements(ctx context.Context, p Params) ([]Event, error) {
	return s.unifier.UnifyMovements(ctx, p)
}

// InitialBalance exposes the settled balance carried into periodStart.
func (s *Service) InitialBalance(ctx context.Context, companyID uuid.UUID, periodStart time.Time, accountIDs []uuid.UUID) (decimal.Decimal, error) {
	return s.balances.ComputeInitialBalance(ctx, companyID, periodStart, accountIDs)
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

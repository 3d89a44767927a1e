package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashflow/internal/cashflow"
	jobmetrics "github.com/odyssey-erp/cashflow/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const companyTimeout = 20 * time.Second

// ReportService builds and invalidates cash-flow reports.
type ReportService interface {
	Report(ctx context.Context, q cashflow.Query) (cashflow.Report, error)
	Invalidate(ctx context.Context) (int64, error)
}

// CompanyLister discovers companies worth warming.
type CompanyLister interface {
	ActiveCompanies(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// CashflowJobs handles the warmup and invalidation tasks.
type CashflowJobs struct {
	Reports   ReportService
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewCashflowJobs wires dependencies for the cash-flow task handlers.
func NewCashflowJobs(reports ReportService, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *CashflowJobs {
	return &CashflowJobs{
		Reports:   reports,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithNow overrides the job clock for testing.
func (j *CashflowJobs) WithNow(fn func() time.Time) {
	if fn != nil {
		j.clock = fn
	}
}

// Handlers returns the task handlers to register on the worker.
func (j *CashflowJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskCashflowWarmup, Handler: j.HandleWarmup},
		{Type: TaskCashflowInvalidate, Handler: j.HandleInvalidate},
	}
}

// HandleWarmup builds the default report of every selected company so the
// first interactive request hits the cache.
func (j *CashflowJobs) HandleWarmup(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("cashflow warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cashflow warmup payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskCashflowWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := warmupPeriod(payload.Month, j.now())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger(TaskCashflowWarmup).With(slog.String("month", period.Start.Format("2006-01")))
	logger.Info("starting cashflow warmup")

	companies, err := j.companies(ctx, payload, period)
	if err != nil {
		logger.Error("load warmup companies", slog.Any("error", err))
		return err
	}
	if len(companies) == 0 {
		logger.Info("no companies discovered for warmup")
		return nil
	}

	start := time.Now()
	var (
		warmed int
		failed []error
	)
	for _, companyID := range companies {
		if err := j.warmCompany(ctx, companyID, period); err != nil {
			logger.Error("warm company", slog.String("company_id", companyID.String()), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("company %s: %w", companyID, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		warmed++
	}
	j.metrics().AddWarmed("ok", warmed)
	j.metrics().AddWarmed("error", len(failed))

	logger.Info("completed cashflow warmup",
		slog.Int("companies", warmed),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(start)))
	return errors.Join(failed...)
}

// HandleInvalidate bumps the report cache version.
func (j *CashflowJobs) HandleInvalidate(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("cashflow invalidate: handler not configured")
	}
	var payload InvalidatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cashflow invalidate payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics().Track(TaskCashflowInvalidate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	version, err := j.Reports.Invalidate(ctx)
	if err != nil {
		return err
	}
	j.logger(TaskCashflowInvalidate).Info("cashflow cache invalidated",
		slog.Int64("version", version),
		slog.String("reason", payload.Reason))
	return nil
}

func (j *CashflowJobs) warmCompany(ctx context.Context, companyID uuid.UUID, period cashflow.Period) error {
	companyCtx, cancel := context.WithTimeout(ctx, companyTimeout)
	defer cancel()

	_, err := j.Reports.Report(companyCtx, cashflow.Query{
		Params: cashflow.Params{
			CompanyID:     companyID,
			Period:        period,
			ReportingMode: cashflow.ModePaymentDate,
			StatusFilter:  cashflow.FilterAll,
		},
	})
	return err
}

func (j *CashflowJobs) companies(ctx context.Context, payload WarmupPayload, period cashflow.Period) ([]uuid.UUID, error) {
	if len(payload.CompanyIDs) > 0 {
		out := make([]uuid.UUID, 0, len(payload.CompanyIDs))
		for _, raw := range payload.CompanyIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("company id %q: %v: %w", raw, err, asynq.SkipRetry)
			}
			out = append(out, id)
		}
		return out, nil
	}
	if j.Companies == nil {
		return nil, errors.New("cashflow warmup: company lister not configured")
	}
	return j.Companies.ActiveCompanies(ctx, period.Start)
}

func warmupPeriod(month string, now time.Time) (cashflow.Period, error) {
	if month == "" {
		return cashflow.DefaultPeriod(now), nil
	}
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return cashflow.Period{}, fmt.Errorf("cashflow warmup: month %q: expected YYYY-MM", month)
	}
	return cashflow.DefaultPeriod(first), nil
}

func (j *CashflowJobs) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *CashflowJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CashflowJobs) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

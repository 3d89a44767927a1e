package cashflow

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes report builds.
type Metrics struct {
	duration *prometheus.HistogramVec
	events   *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewMetrics registers the report collectors. Collectors already registered
// on reg are reused so several services can share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cashflow_report_duration_seconds",
		Help:    "Duration required to build a cash-flow report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "status"})
	events := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cashflow_report_events",
		Help:    "Number of unified events per cash-flow report.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"mode"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cashflow_report_cache_total",
		Help: "Cash-flow report cache lookups partitioned by result.",
	}, []string{"result"})

	m := &Metrics{}
	var err error
	if m.duration, err = registerHistogram(reg, duration); err != nil {
		return nil, err
	}
	if m.events, err = registerHistogram(reg, events); err != nil {
		return nil, err
	}
	if err := reg.Register(cache); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		cache = existing
	}
	m.cache = cache
	return m, nil
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return h, nil
}

func (m *Metrics) observeReport(q Query, events int, elapsed time.Duration) {
	if m == nil {
		return
	}
	mode := string(q.Params.ReportingMode)
	m.duration.WithLabelValues(mode, string(q.Params.StatusFilter)).Observe(elapsed.Seconds())
	m.events.WithLabelValues(mode).Observe(float64(events))
}

func (m *Metrics) recordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// Package metrics exposes Prometheus instrumentation for queries and
// product lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Product lookup outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNoGranules   = "no_granules"
	OutcomeSearchError  = "search_error"
	OutcomeOpenError    = "open_error"
	OutcomeExtractError = "extract_error"
)

// Query statuses.
const (
	StatusOK        = "ok"
	StatusBadInput  = "bad_request"
	StatusAuthError = "auth_error"
	StatusError     = "error"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	lookups       *prometheus.CounterVec
	composite     prometheus.Histogram
	noScore       *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempoaqi_queries_total",
				Help: "Queries handled, by status.",
			},
			[]string{"status"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempoaqi_query_duration_seconds",
				Help:    "Histogram of end-to-end query times.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempoaqi_product_lookups_total",
				Help: "Per-point product lookups, by pollutant and outcome.",
			},
			[]string{"pollutant", "outcome"},
		),
		composite: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempoaqi_composite_index",
				Help:    "Distribution of composite index values.",
				Buckets: []float64{50, 100, 150, 200, 300, 500},
			},
		),
		noScore: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempoaqi_unscored_points_total",
				Help: "Points without a composite index, by reason.",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.queries,
		m.queryDuration,
		m.lookups,
		m.composite,
		m.noScore,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records a finished query.
func (m *Metrics) ObserveQuery(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(status).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// ObserveLookup records the outcome of one product lookup.
func (m *Metrics) ObserveLookup(pollutant, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(pollutant, outcome).Inc()
}

// ObserveIndex records a composite value, or the reason none was produced.
func (m *Metrics) ObserveIndex(value *int, reason string) {
	if m == nil {
		return
	}
	if value == nil {
		m.noScore.WithLabelValues(reason).Inc()
		return
	}
	m.composite.Observe(float64(*value))
}

// Package observability exposes run metrics in Prometheus format.
package observability

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every metric name.
const MetricsNamespace = "newsgoat"

// Item outcomes used as the "outcome" label of ItemsTotal.
const (
	OutcomeCandidate = "candidate"
	OutcomeEmitted   = "emitted"
	OutcomeInserted  = "inserted"
	OutcomeDropped   = "dropped"
)

// Metrics tracks operational metrics for ingestion runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal    *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	PolitenessWaits *prometheus.CounterVec
	HelperRuns      *prometheus.CounterVec
	ItemsTotal      *prometheus.CounterVec
	SourceErrors    *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastRunUnix     prometheus.Gauge

	// Running totals for Snapshot.
	fetches  atomic.Int64
	failures atomic.Int64
	waits    atomic.Int64
	inserted atomic.Int64
	dropped  atomic.Int64
	runs     atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}

	m.FetchesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "fetches_total",
		Help:      "Outbound fetches by source and outcome",
	}, []string{"source", "outcome"})

	m.FetchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of outbound fetches in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source"})

	m.PolitenessWaits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "politeness_waits_total",
		Help:      "Politeness pauses taken because an origin recurred",
	}, []string{"source"})

	m.HelperRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "extractor_runs_total",
		Help:      "Body extractor invocations by source and outcome",
	}, []string{"source", "outcome"})

	m.ItemsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "items_total",
		Help:      "Items by source and outcome",
	}, []string{"source", "outcome"})

	m.SourceErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "source_errors_total",
		Help:      "Scrape cycles that failed at the source level",
	}, []string{"source"})

	m.RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of whole ingestion runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.LastRunUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	return m
}

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(source string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.failures.Add(1)
	}
	m.fetches.Add(1)
	m.FetchesTotal.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveWait records one politeness pause.
func (m *Metrics) ObserveWait(source string) {
	if m == nil {
		return
	}
	m.waits.Add(1)
	m.PolitenessWaits.WithLabelValues(source).Inc()
}

// ObserveHelper records one body extractor invocation.
func (m *Metrics) ObserveHelper(source string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "no_body"
	}
	m.HelperRuns.WithLabelValues(source, outcome).Inc()
}

// AddItems adds n items with the given outcome for source.
func (m *Metrics) AddItems(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	switch outcome {
	case OutcomeInserted:
		m.inserted.Add(int64(n))
	case OutcomeDropped:
		m.dropped.Add(int64(n))
	}
	m.ItemsTotal.WithLabelValues(source, outcome).Add(float64(n))
}

// ObserveSourceError records a failed scrape cycle.
func (m *Metrics) ObserveSourceError(source string) {
	if m == nil {
		return
	}
	m.SourceErrors.WithLabelValues(source).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Add(1)
	m.RunDuration.Observe(d.Seconds())
	m.LastRunUnix.SetToCurrentTime()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Snapshot returns running totals as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"runs":            m.runs.Load(),
		"fetches":         m.fetches.Load(),
		"fetch_failures":  m.failures.Load(),
		"politeness_wait": m.waits.Load(),
		"items_inserted":  m.inserted.Load(),
		"items_dropped":   m.dropped.Load(),
	}
}

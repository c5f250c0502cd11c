package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventscout"

// Fetch outcomes
const (
	FetchOK               = "ok"
	FetchCacheHit         = "cache_hit"
	FetchFailure          = "failure"
	FetchTimeout          = "timeout"
	FetchRobotsDisallowed = "robots_disallowed"
)

// Metrics holds the pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	severities    *prometheus.CounterVec
	quality       prometheus.Histogram
	batchDuration prometheus.Histogram
	lastBatchTS   prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Events processed by decision and rejection reason",
	}, []string{"decision", "reason"})
	m.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Reference page fetches by outcome",
	}, []string{"outcome"})
	m.severities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "severity_total",
		Help:      "Date discrepancy assessments by severity",
	}, []string{"severity"})
	m.quality = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "quality_overall",
		Help:      "Overall quality score of accepted events",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})
	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time spent validating a batch",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	m.lastBatchTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_batch_timestamp_seconds",
		Help:      "Unix timestamp of the last completed batch",
	})

	m.registry.MustRegister(
		m.events, m.fetches, m.severities,
		m.quality, m.batchDuration, m.lastBatchTS,
	)
	return m
}

// ObserveEvent counts one decision; reason is empty for accepted events
func (m *Metrics) ObserveEvent(decision, reason string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(decision, reason).Inc()
}

// ObserveQuality records the overall score of an accepted event
func (m *Metrics) ObserveQuality(overall float64) {
	if m == nil {
		return
	}
	m.quality.Observe(overall)
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSeverity(severity string) {
	if m == nil {
		return
	}
	m.severities.WithLabelValues(severity).Inc()
}

// ObserveBatch records a finished batch
func (m *Metrics) ObserveBatch(duration time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
	m.lastBatchTS.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

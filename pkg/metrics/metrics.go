// Package metrics provides Prometheus instrumentation for semcache.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for semcache.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	OperationsTotal *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	TokensSaved     prometheus.Counter
	CostSaved       prometheus.Counter
	EntriesLive     prometheus.Gauge
	BytesLive       prometheus.Gauge
	EvictionsTotal  *prometheus.CounterVec
	DegradedTotal   prometheus.Counter
	JournalDepth    prometheus.Gauge
	JournalDropped  prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all semcache metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// Include default Go and process collectors
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_requests_total",
				Help: "Total HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "semcache_request_duration_seconds",
				Help:    "HTTP request latency distribution.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"endpoint"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "semcache_active_requests",
				Help: "Number of requests currently being processed.",
			},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_operations_total",
				Help: "Total cache decisions by operation type.",
			},
			[]string{"type"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "semcache_resolve_duration_seconds",
				Help:    "Query resolution latency by strategy.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"strategy"},
		),
		TokensSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "semcache_tokens_saved_total",
				Help: "Cumulative tokens saved by cache hits.",
			},
		),
		CostSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "semcache_cost_saved_dollars_total",
				Help: "Cumulative dollar cost saved by cache hits.",
			},
		),
		EntriesLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "semcache_entries",
				Help: "Number of live cache entries.",
			},
		),
		BytesLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "semcache_bytes",
				Help: "Accounted size of live cache entries in bytes.",
			},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_evictions_total",
				Help: "Total entries evicted by policy.",
			},
			[]string{"policy"},
		),
		DegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "semcache_degraded_total",
				Help: "Resolutions that fell back to exact-only matching.",
			},
		),
		JournalDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "semcache_journal_queue_depth",
				Help: "Records waiting in the journal write queue.",
			},
		),
		JournalDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "semcache_journal_dropped_total",
				Help: "Records dropped due to journal backpressure.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.OperationsTotal,
		m.ResolveDuration,
		m.TokensSaved,
		m.CostSaved,
		m.EntriesLive,
		m.BytesLive,
		m.EvictionsTotal,
		m.DegradedTotal,
		m.JournalDepth,
		m.JournalDropped,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request's metrics.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// OperationResolved records one completed cache decision.
func (m *Metrics) OperationResolved(opType, strategy string, duration time.Duration, tokensSaved int, costSaved float64) {
	m.OperationsTotal.WithLabelValues(opType).Inc()
	m.ResolveDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if tokensSaved > 0 {
		m.TokensSaved.Add(float64(tokensSaved))
	}
	if costSaved > 0 {
		m.CostSaved.Add(costSaved)
	}
}

// EntriesEvicted records an eviction batch.
func (m *Metrics) EntriesEvicted(policy string, count int) {
	m.EvictionsTotal.WithLabelValues(policy).Add(float64(count))
}

// SemanticDegraded records a fall back to exact-only matching.
func (m *Metrics) SemanticDegraded() {
	m.DegradedTotal.Inc()
}

// CacheSized updates the live entry and byte gauges.
func (m *Metrics) CacheSized(entries int, bytes int64) {
	m.EntriesLive.Set(float64(entries))
	m.BytesLive.Set(float64(bytes))
}

// JournalQueued updates the journal queue depth gauge.
func (m *Metrics) JournalQueued(depth int) {
	m.JournalDepth.Set(float64(depth))
}

// JournalDropOccurred records a dropped journal record.
func (m *Metrics) JournalDropOccurred() {
	m.JournalDropped.Inc()
}

// Middleware returns an HTTP middleware that instruments requests.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r)

		m.RecordRequest(endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

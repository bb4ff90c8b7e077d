// Package metrics defines the Prometheus collectors used by the search
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes recorded by SearchQueriesTotal.
const (
	OutcomeOK         = "ok"
	OutcomeZeroResult = "zero_result"
	OutcomeError      = "error"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	SearchHits             prometheus.Histogram
	ResultCacheHits        prometheus.Counter
	ResultCacheMisses      prometheus.Counter
	ShardDocCount          *prometheus.GaugeVec
	ActiveShards           prometheus.Gauge
	CircuitBreakerState    *prometheus.GaugeVec
	AnalyticsEventsDropped prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total searches by kind (search, sorted, explain) and outcome (ok, zero_result, error).",
			},
			[]string{"kind", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind", "cache_status"},
		),
		SearchHits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_total_hits",
				Help:    "Number of matching documents per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000, 10000},
			},
		),
		ResultCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "result_cache_hits_total",
				Help: "Searches answered from the result cache.",
			},
		),
		ResultCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "result_cache_misses_total",
				Help: "Searches the result cache could not answer.",
			},
		),
		ShardDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_document_count",
				Help: "Number of documents per shard.",
			},
			[]string{"shard_id"},
		),
		ActiveShards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_shards",
				Help: "Number of searchable shards.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Search events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchHits,
		m.ResultCacheHits,
		m.ResultCacheMisses,
		m.ShardDocCount,
		m.ActiveShards,
		m.CircuitBreakerState,
		m.AnalyticsEventsDropped,
	)

	return m
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(kind, cacheStatus string, seconds float64, totalHits int, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case totalHits == 0:
		outcome = OutcomeZeroResult
	}
	m.SearchQueriesTotal.WithLabelValues(kind, outcome).Inc()
	if err != nil {
		return
	}
	m.SearchLatency.WithLabelValues(kind, cacheStatus).Observe(seconds)
	m.SearchHits.Observe(float64(totalHits))
}

// Handler returns the scrape handler for the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

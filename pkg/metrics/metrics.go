// Package metrics defines the Prometheus metric collectors used by the
// indexer and searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RecordsTotal         *prometheus.CounterVec
	FieldErrorsTotal     *prometheus.CounterVec
	TokensIndexedTotal   *prometheus.CounterVec
	IndexTerms           *prometheus.GaugeVec
	BuildDuration        prometheus.Histogram
	ExportsTotal         *prometheus.CounterVec
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_records_total",
				Help: "Input records processed by outcome (indexed, skipped, malformed).",
			},
			[]string{"outcome"},
		),
		FieldErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_field_errors_total",
				Help: "Record fields skipped because of an unexpected shape.",
			},
			[]string{"field"},
		),
		TokensIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_tokens_indexed_total",
				Help: "Tokens written to each index.",
			},
			[]string{"index"},
		),
		IndexTerms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_index_terms",
				Help: "Distinct terms per index in the last frozen snapshot.",
			},
			[]string{"index"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_build_duration_seconds",
				Help:    "Wall time of a full index build.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_exports_total",
				Help: "Index exports by destination and status.",
			},
			[]string{"destination", "status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by index and result type (hit, zero_result, error).",
			},
			[]string{"index", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RecordsTotal,
		m.FieldErrorsTotal,
		m.TokensIndexedTotal,
		m.IndexTerms,
		m.BuildDuration,
		m.ExportsTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

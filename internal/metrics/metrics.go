// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfsup_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfsup_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfsup_db_queries_total",
			Help: "Total number of database statements",
		},
		[]string{"op"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfsup_db_query_duration_seconds",
			Help:    "Database statement duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)

	DBSessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "surfsup_db_sessions_open",
			Help: "Number of request-scoped store sessions currently held",
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfsup_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"key"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfsup_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"key"},
	)

	CacheFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "surfsup_cache_flushes_total",
			Help: "Total number of response cache flushes triggered by dataset events",
		},
	)

	DatasetEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfsup_dataset_events_total",
			Help: "Dataset events received over MQTT",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics declares the Prometheus collectors for the question pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ekaya_ask_build_info",
			Help: "Build information of ekaya-ask",
		},
		[]string{"version"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, stale, error)",
		},
		[]string{"result"},
	)

	CacheStoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_cache_stores_total",
			Help: "Cache writes by outcome",
		},
		[]string{"outcome"},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ekaya_ask_cache_evictions_total",
			Help: "Cache entries removed by the eviction policy",
		},
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_classifications_total",
			Help: "Question classifications by outcome",
		},
		[]string{"outcome"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_stage_failures_total",
			Help: "Pipeline stage failures by stage",
		},
		[]string{"stage"},
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_ask_resolve_duration_seconds",
			Help:    "End-to-end question resolution time by branch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"branch"},
	)

	GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_gateway_calls_total",
			Help: "Language-model calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_ask_gateway_call_duration_seconds",
			Help:    "Language-model call latency by operation, retries included",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	GatewayRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_gateway_retries_total",
			Help: "Language-model call retries by operation",
		},
		[]string{"operation"},
	)
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_ask_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome returns the label value for an operation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

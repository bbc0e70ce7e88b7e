// Package metrics holds the Prometheus collectors for the broker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	// Upstream (Strava) metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_upstream_requests_total",
			Help: "Total number of requests made to Strava by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_upstream_request_duration_seconds",
			Help:    "Duration of requests made to Strava in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strava_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Activity cache metrics
	ActivityCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_cache_hits_total",
			Help: "Total number of activity requests served from the session cache",
		},
	)

	ActivityCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_cache_misses_total",
			Help: "Total number of activity requests that required an upstream fetch",
		},
	)

	// Token lifecycle metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_token_refreshes_total",
			Help: "Total number of access token refreshes by outcome",
		},
		[]string{"outcome"},
	)

	Authorizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_authorizations_total",
			Help: "Total number of completed OAuth callbacks by outcome",
		},
		[]string{"outcome"},
	)

	// Bulk refresh metrics
	BulkRefreshSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_refresh_sessions_total",
			Help: "Sessions processed by bulk refresh by outcome",
		},
		[]string{"outcome"},
	)

	BulkRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulk_refresh_duration_seconds",
			Help:    "Duration of a complete bulk refresh run in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func RecordUpstreamRequest(endpoint string, duration time.Duration, err error) {
	UpstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func RecordCacheLookup(hit bool) {
	if hit {
		ActivityCacheHits.Inc()
		return
	}
	ActivityCacheMisses.Inc()
}

func RecordTokenRefresh(err error) {
	TokenRefreshes.WithLabelValues(outcome(err)).Inc()
}

func RecordAuthorization(err error) {
	Authorizations.WithLabelValues(outcome(err)).Inc()
}

func RecordBulkRefreshSession(result string) {
	BulkRefreshSessions.WithLabelValues(result).Inc()
}

func RecordBulkRefreshRun(duration time.Duration) {
	BulkRefreshDuration.Observe(duration.Seconds())
}

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiurfinder_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Authorization
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_authz_decisions_total",
			Help: "Authorization decisions by role and result",
		},
		[]string{"role", "result"}, // result: "allowed", "denied", "error"
	)

	// Preferences
	FollowChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_follow_changes_total",
			Help: "Follow and unfollow operations that changed the following set",
		},
		[]string{"action"}, // "follow", "unfollow"
	)

	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_compensations_total",
			Help: "Compensating writes issued after a failed follower counter update",
		},
		[]string{"action", "result"}, // result: "ok", "failed"
	)

	// Importer
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_import_rows_total",
			Help: "CSV rows processed by the bulk importer",
		},
		[]string{"result"}, // "imported", "skipped"
	)

	ImportRabbisCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiurfinder_import_rabbis_created_total",
			Help: "Rabbis created implicitly by the bulk importer",
		},
	)

	// Feed
	FeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_feed_items_total",
			Help: "Feed items by resolution result",
		},
		[]string{"result"}, // "included", "dropped"
	)

	FeedPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiurfinder_feed_publish_total",
			Help: "Feed publish attempts by target and result",
		},
		[]string{"target", "result"},
	)

	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiurfinder_feed_fetch_duration_seconds",
			Help:    "Duration of media page fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shiurfinder_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Middleware records request counts and latency by chi route pattern so ids in
// paths do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

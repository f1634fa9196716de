// Package metrics exposes the Prometheus gauges and counters this service
// reports, grounded on the pack's own metrics package
// (watzon-alyx/internal/metrics): a small set of promauto-registered
// collectors plus a Handler for mounting promhttp at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folivafy_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folivafy_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	documentMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folivafy_document_mutations_total",
			Help: "Total number of document mutations by operation.",
		},
		[]string{"collection", "operation"},
	)

	outboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folivafy_outbox_backlog",
			Help: "Number of outbox rows not yet published.",
		},
	)

	grantRebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folivafy_grant_rebuild_duration_seconds",
			Help:    "Duration of a grant rebuild run.",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"collection"},
	)
)

// Handler serves the process's registered collectors at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one completed request's outcome and latency.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation records one document insert/replace/event.
func RecordMutation(collection, operation string) {
	documentMutationsTotal.WithLabelValues(collection, operation).Inc()
}

// SetOutboxBacklog reports the outbox's current unpublished row count.
func SetOutboxBacklog(n int) {
	outboxBacklog.Set(float64(n))
}

// ObserveGrantRebuild records how long a grant rebuild took for collection.
func ObserveGrantRebuild(collection string, d time.Duration) {
	grantRebuildDuration.WithLabelValues(collection).Observe(d.Seconds())
}

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BackendRequests counts calls to the mug backend by operation and outcome.
	BackendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mug_backend_requests_total",
			Help: "Total number of backend requests",
		},
		[]string{"op", "outcome"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mug_backend_request_duration_seconds",
			Help:    "Histogram of backend response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// PollerAttempts counts every fetch issued by a retry poller.
	PollerAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mug_poller_attempts_total",
			Help: "Number of retry poller fetch attempts",
		},
		[]string{"concern"},
	)

	FeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mug_feed_events_total",
			Help: "Update feed events by type",
		},
		[]string{"type"},
	)

	BulkFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mug_bulk_fetches_total",
			Help: "Bulk scan fetches by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(BackendRequests, BackendRequestDuration, PollerAttempts, FeedEvents, BulkFetches)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Package observability provides logging, metrics, and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdesk_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewdesk_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// StatusTransitions counts committed lifecycle transitions.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdesk_status_transitions_total",
		Help: "Committed application status transitions",
	}, []string{"from", "to", "actor_role"})

	// ReviewRejections counts review attempts refused before commit, by error code.
	ReviewRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdesk_review_rejections_total",
		Help: "Review actions refused by validation or the state machine",
	}, []string{"code"})

	// NotificationsDispatched counts notification intents handed to the sender.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdesk_notifications_dispatched_total",
		Help: "Notification intents dispatched by outcome",
	}, []string{"kind", "outcome"})

	// StatusCacheLookups counts applicant status cache hits and misses.
	StatusCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewdesk_status_cache_lookups_total",
		Help: "Applicant status cache lookups by result",
	}, []string{"result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordTransition counts a committed transition.
func RecordTransition(from, to, role string) {
	StatusTransitions.WithLabelValues(from, to, role).Inc()
}

// RecordDispatch counts a notification dispatch outcome.
func RecordDispatch(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	NotificationsDispatched.WithLabelValues(kind, outcome).Inc()
}

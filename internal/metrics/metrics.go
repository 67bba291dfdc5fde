package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safetrip"

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Ingress
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Alerts and reports accepted or rejected by ingress",
		},
		[]string{"kind", "result"},
	)

	AlertsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Alerts flipped from active to resolved",
		},
	)

	// Broadcaster
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events handed to the broadcaster",
		},
		[]string{"type"},
	)

	SubscribersConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_connected",
			Help:      "Currently registered live subscribers",
		},
		[]string{"transport"},
	)

	SubscribersDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed because delivery failed",
		},
		[]string{"reason"},
	)

	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Events sent to or received from the Redis relay",
		},
		[]string{"direction"},
	)

	// Retention
	RetentionPurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_purged_total",
			Help:      "Records removed by the retention job",
		},
		[]string{"entity"},
	)

	// Authority session client
	SessionRefetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_refetch_total",
			Help:      "Full list refetches performed by the authority session",
		},
		[]string{"trigger", "result"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuledesk_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CapabilityChecks counts capability evaluations and their outcome (allowed|denied|error).
	CapabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuledesk_capability_checks_total",
			Help: "Total number of capability checks",
		},
		[]string{"capability", "result"},
	)

	// DashboardResolutions counts dashboard config computations by target kind (org|unit|audience).
	DashboardResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuledesk_dashboard_resolutions_total",
			Help: "Total number of dashboard config resolutions",
		},
		[]string{"target"},
	)

	// InviteBatchItems counts bulk invite item outcomes (sent|failed|skipped).
	InviteBatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuledesk_invite_batch_items_total",
			Help: "Bulk invite item outcomes",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shuledesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

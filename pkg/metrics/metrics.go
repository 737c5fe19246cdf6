package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounthub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// Registrations counts user registrations by result (success|failure).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounthub_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// InvitationOutcomes counts invitation workflow transitions
	// (created|accepted|declined|rejected).
	InvitationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounthub_invitations_total",
			Help: "Total number of invitation workflow outcomes",
		},
		[]string{"outcome"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accounthub_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accounthub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

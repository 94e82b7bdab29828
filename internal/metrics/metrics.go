package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request lifecycle.
	RequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_created_total",
			Help: "Total number of bridge requests created",
		},
		[]string{"kind"},
	)

	RequestsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_finalized_total",
			Help: "Total number of bridge requests finalized",
		},
		[]string{"operation"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_operation_errors_total",
			Help: "Total number of rejected lifecycle operations",
		},
		[]string{"operation", "reason"},
	)

	VotesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_votes_recorded_total",
		Help: "Total number of advisory validator votes recorded",
	})

	// Rate limiting.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_rate_limit_rejections_total",
		Help: "Total number of transfers rejected by the rate limiter",
	})

	WindowResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_window_resets_total",
			Help: "Total number of rate-limit window resets",
		},
		[]string{"scope"},
	)

	// Timelock governor.
	TimelockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_timelock_operations_total",
			Help: "Total number of timelock schedule/execute/cancel operations",
		},
		[]string{"action"},
	)

	// Custody adapter.
	CustodyCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_custody_call_duration_seconds",
			Help:    "Custody adapter call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CustodyCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_custody_call_errors_total",
			Help: "Total number of failed custody adapter calls",
		},
		[]string{"method"},
	)

	// System state.
	SystemPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_system_paused",
		Help: "Whether lifecycle operations are halted (1=paused, 0=running)",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_published_total",
			Help: "Total number of events published to the event bus",
		},
		[]string{"type"},
	)

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_websocket_clients",
		Help: "Number of connected websocket event subscribers",
	})
)

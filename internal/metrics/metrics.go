package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS connection and broadcast metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	OrdersBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_orders_broadcast_total",
			Help: "Total number of order announcements published to NATS",
		},
		[]string{"result"},
	)

	// ============================================
	// Order lifecycle metrics
	// ============================================
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_orders_created_total",
		Help: "Total number of swap orders accepted",
	})

	OrdersByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayer_orders_by_status",
			Help: "Number of orders currently in each status",
		},
		[]string{"status"},
	)

	CommitAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_commit_attempts_total",
			Help: "Total number of resolver commit attempts",
		},
		[]string{"result"},
	)

	SecretsRevealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_secrets_revealed_total",
		Help: "Total number of order secrets revealed to resolvers",
	})

	RescuesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_rescues_opened_total",
		Help: "Total number of orders moved to rescue after resolver timeout",
	})

	// ============================================
	// Chain interaction metrics
	// ============================================
	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayer_chain_call_duration_seconds",
			Help:    "Chain adapter call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain_id", "method"},
	)

	ChainCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_chain_call_errors_total",
			Help: "Total number of failed chain adapter calls",
		},
		[]string{"chain_id", "method"},
	)

	// ============================================
	// WebSocket push metrics
	// ============================================
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_websocket_clients",
		Help: "Number of connected order status subscribers",
	})
)

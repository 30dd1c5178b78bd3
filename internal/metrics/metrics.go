package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_sessions",
			Help: "Currently attached websocket sessions",
		},
	)

	// Pipeline metrics
	MessagesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_submitted_total",
			Help: "Messages accepted by the pipeline",
		},
		[]string{"path"}, // "queued" or "fallback"
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages written to the store",
		},
	)

	MessageRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_message_retries_total",
			Help: "Queue deliveries requeued after a persistence failure",
		},
	)

	MessagesDeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_dead_lettered_total",
			Help: "Deliveries parked after exhausting retry attempts",
		},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_validation_failures_total",
			Help: "Rejected message submissions",
		},
		[]string{"field"}, // "message" or "username"
	)

	// Call signaling metrics
	CallsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_calls_started_total",
			Help: "Call sessions created by an accepted offer",
		},
	)

	CallsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_calls_completed_total",
			Help: "Call sessions torn down",
		},
	)

	CallOffersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_call_offers_dropped_total",
			Help: "Call offers to targets that were not online",
		},
	)

	CallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_call_duration_seconds",
			Help:    "Duration of completed call sessions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_store_latency_seconds",
			Help:    "Message store write latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)

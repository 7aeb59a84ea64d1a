package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airhost_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	WebhookMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_webhook_messages_total",
			Help: "WhatsApp webhook messages processed",
		},
		[]string{"result"}, // "stored", "duplicate", "failed"
	)

	WebhookStatuses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airhost_webhook_statuses_total",
			Help: "WhatsApp delivery status callbacks applied",
		},
	)

	OutboundSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_outbound_sends_total",
			Help: "Outbound WhatsApp sends",
		},
		[]string{"kind", "result"}, // kind "text" or "template"
	)

	AIGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_ai_generations_total",
			Help: "AI completions requested",
		},
		[]string{"provider", "operation", "result"},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_push_deliveries_total",
			Help: "Push notification deliveries",
		},
		[]string{"notifier", "result"},
	)

	Emergencies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_emergencies_total",
			Help: "Guest messages flagged as emergencies",
		},
		[]string{"severity"},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airhost_search_queries_total",
			Help: "Total message search queries",
		},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airhost_realtime_connections",
			Help: "Open websocket connections",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airhost_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airhost_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	DatabaseLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airhost_database_latency_seconds",
			Help:    "Database ping latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)

// Result labels a counter by outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	TicketOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_ticket_operations_total",
		Help: "Queue engine operations by kind and result.",
	}, []string{"operation", "result"})

	LiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_live_connections",
		Help: "Open live connections by transport.",
	}, []string{"transport"})

	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_hub_dropped_messages_total",
		Help: "Live messages dropped because a connection buffer was full.",
	})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_event_publish_failures_total",
		Help: "Live event publish failures by publisher.",
	}, []string{"publisher"})

	PurgeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_purge_runs_total",
		Help: "Maintenance purge runs by result.",
	}, []string{"result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_rate_limited_total",
		Help: "Requests rejected by the per-address limiter by budget.",
	}, []string{"class"})

	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_outbox_deliveries_total",
		Help: "Outbox events handed to sinks by sink and result.",
	}, []string{"sink", "result"})
)

// Result labels an outcome for the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

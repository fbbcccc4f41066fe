package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_published_total",
			Help: "Total number of events accepted by publish, by category",
		},
		[]string{"category"},
	)

	EventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_rejected_total",
			Help: "Total number of events rejected at publish, by reason",
		},
		[]string{"reason"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of handler dispatches by delivery mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	DeliveryRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_retries_total",
			Help: "Total number of retry attempts across all subscriptions",
		},
	)

	DeduplicatedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_deduplicated_events_total",
			Help: "Total number of exactly-once deliveries suppressed as duplicates",
		},
	)

	DroppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dropped_events_total",
			Help: "Total number of events dropped from full ordered-mode queues",
		},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_subscriptions",
			Help: "Current number of registered subscriptions",
		},
	)

	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_latency_seconds",
			Help:    "Time from publish to handler completion in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Gateway metrics
	ConnectionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connections_total",
			Help: "Current number of gateway connections by state",
		},
		[]string{"state"},
	)

	ConnectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_connections_rejected_total",
			Help: "Total number of rejected connections by reason",
		},
		[]string{"reason"},
	)

	MessagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total number of inbound wire messages accepted",
		},
	)

	MessagesRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_rate_limited_total",
			Help: "Total number of inbound wire messages rejected by the rate limiter",
		},
	)

	AuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Total number of failed authentication attempts",
		},
	)

	AuthTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_auth_timeouts_total",
			Help: "Total number of connections closed for missing the auth deadline",
		},
	)

	BroadcastSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcast_send_failures_total",
			Help: "Total number of per-connection send failures during broadcast",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsRejected)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(DeliveryRetries)
	prometheus.MustRegister(DeduplicatedEvents)
	prometheus.MustRegister(DroppedEvents)
	prometheus.MustRegister(ActiveSubscriptions)
	prometheus.MustRegister(DeliveryLatency)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(ConnectionsRejected)
	prometheus.MustRegister(MessagesReceived)
	prometheus.MustRegister(MessagesRateLimited)
	prometheus.MustRegister(AuthFailures)
	prometheus.MustRegister(AuthTimeouts)
	prometheus.MustRegister(BroadcastSendFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

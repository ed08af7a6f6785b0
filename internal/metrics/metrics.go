// Package metrics holds the process's prometheus collectors, grounded on
// the teacher's metrics/prometheus.go: one CounterVec/HistogramVec per
// concern, registered explicitly from main rather than via init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"route", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "gateway_sessions_active",
		Help: "Number of sessions currently in status=connected",
	},
)

var SessionReconnectAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_session_reconnect_attempts_total",
		Help: "Total number of reconnection attempts scheduled",
	},
	[]string{"reason"},
)

var SessionReconnectExhaustedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_session_reconnect_exhausted_total",
		Help: "Total number of sessions that hit the max reconnect attempt cap",
	},
)

var OutboundQueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "gateway_outbound_queue_depth",
		Help: "Current depth of the per-session outbound queue",
	},
	[]string{"session_id"},
)

var OutboundSendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_outbound_sends_total",
		Help: "Total number of outbound send attempts",
	},
	[]string{"status"},
)

var OutboundRateLimitWaitsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_outbound_rate_limit_waits_total",
		Help: "Total number of times the outbound worker slept for the token bucket to refill",
	},
)

var WebhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_webhook_deliveries_total",
		Help: "Total number of webhook delivery attempts",
	},
	[]string{"status"},
)

var WebhookDeliveryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_webhook_delivery_duration_seconds",
		Help:    "Duration of webhook POSTs in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status"},
)

var WebhookRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_webhook_retries_total",
		Help: "Total number of webhook delivery retries",
	},
	[]string{"attempt"},
)

var KafkaPublishFailureTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_kafka_publish_failure_total",
		Help: "Total number of failed best-effort event-bus Kafka publishes",
	},
	[]string{"topic"},
)

// Register registers every collector in this package. Call once at
// startup before serving /metrics.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SessionsActive,
		SessionReconnectAttemptsTotal,
		SessionReconnectExhaustedTotal,
		OutboundQueueDepth,
		OutboundSendsTotal,
		OutboundRateLimitWaitsTotal,
		WebhookDeliveriesTotal,
		WebhookDeliveryDuration,
		WebhookRetriesTotal,
		KafkaPublishFailureTotal,
	)
}

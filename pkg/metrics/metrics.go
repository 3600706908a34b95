// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ConversationsTotal tracks support conversations opened.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_conversations_total",
			Help: "Total support conversations opened",
		},
	)

	// MessagesTotal tracks messages appended, by sender kind.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_messages_total",
			Help: "Total support messages appended",
		},
		[]string{"sender"},
	)

	// IssuesTotal tracks issue reports recorded.
	IssuesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_issues_total",
			Help: "Total issue reports recorded",
		},
	)

	// AlertsTotal tracks admin alerts raised, by event kind.
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_alerts_total",
			Help: "Total admin alerts raised",
		},
		[]string{"kind"},
	)

	// MailSendsTotal tracks outbound email outcomes.
	MailSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_mail_sends_total",
			Help: "Outbound email attempts by outcome",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveriesTotal tracks webhook relay outcomes.
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_webhook_deliveries_total",
			Help: "Webhook relay attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

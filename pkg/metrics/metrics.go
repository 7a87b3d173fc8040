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

	// MessagesTotal tracks total messages persisted, by message type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"message_type"},
	)

	// PresenceTransitions tracks presence writes by resulting state.
	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_transitions_total",
			Help: "Total presence writes by resulting state",
		},
		[]string{"state"},
	)

	// PresenceWriteFailures tracks presence writes that failed. Presence is
	// best effort, so failures are counted rather than surfaced.
	PresenceWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_write_failures_total",
			Help: "Total failed presence writes",
		},
	)

	// DirectChatResolutions tracks direct-chat resolver outcomes.
	DirectChatResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "direct_chat_resolutions_total",
			Help: "Direct chat resolutions by outcome",
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

	// LiveEventsPublished tracks events published to the live channel.
	LiveEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_published_total",
			Help: "Total live update events published",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordPresence records a presence write by resulting state.
func RecordPresence(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	PresenceTransitions.WithLabelValues(state).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the distribution layer
type Metrics struct {
	// Gauges (current values)
	ConnectionsActive   prometheus.Gauge
	SubscriptionsActive prometheus.Gauge

	// Counters (cumulative values)
	ConnectionsTotal         prometheus.Counter
	ConnectionsRejectedTotal prometheus.Counter
	FramesReceivedTotal      *prometheus.CounterVec
	PushesTotal              *prometheus.CounterVec
	SendDroppedTotal         prometheus.Counter
	LivenessClosedTotal      prometheus.Counter
	AuthFailuresTotal        prometheus.Counter
}

// NewMetrics creates and registers all hub metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	if namespace == "" {
		namespace = "launchpad"
	}
	if subsystem == "" {
		subsystem = "websocket"
	}

	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_active",
			Help:      "Current number of live websocket connections",
		}),
		SubscriptionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions_active",
			Help:      "Current number of connection subscriptions",
		}),

		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_total",
			Help:      "Total number of accepted websocket connections",
		}),
		ConnectionsRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_rejected_total",
			Help:      "Total number of connections rejected at the ceiling",
		}),
		FramesReceivedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames by type",
		}, []string{"type"}),
		PushesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pushes_total",
			Help:      "Total number of event frames pushed to connections",
		}, []string{"type"}),
		SendDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_dropped_total",
			Help:      "Total number of frames dropped on full send buffers",
		}),
		LivenessClosedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "liveness_closed_total",
			Help:      "Total number of connections closed for missed pongs",
		}),
		AuthFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected authenticate frames",
		}),
	}
}

// UpdateConnections sets the live connection gauge
func (m *Metrics) UpdateConnections(n int) {
	m.ConnectionsActive.Set(float64(n))
}

// RecordConnected counts an accepted connection
func (m *Metrics) RecordConnected() {
	m.ConnectionsTotal.Inc()
}

// RecordRejected counts a connection turned away at the ceiling
func (m *Metrics) RecordRejected() {
	m.ConnectionsRejectedTotal.Inc()
}

// RecordReceived counts one inbound frame
func (m *Metrics) RecordReceived(frameType string) {
	m.FramesReceivedTotal.WithLabelValues(frameType).Inc()
}

// RecordPush counts one pushed event frame
func (m *Metrics) RecordPush(frameType string) {
	m.PushesTotal.WithLabelValues(frameType).Inc()
}

// RecordSendDropped counts a frame dropped on a full send buffer
func (m *Metrics) RecordSendDropped() {
	m.SendDroppedTotal.Inc()
}

// RecordLivenessClose counts a connection closed by the liveness sweep
func (m *Metrics) RecordLivenessClose() {
	m.LivenessClosedTotal.Inc()
}

// RecordAuthFailure counts a rejected authenticate frame
func (m *Metrics) RecordAuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// AddSubscription bumps the live subscription gauge
func (m *Metrics) AddSubscription() {
	m.SubscriptionsActive.Inc()
}

// RemoveSubscriptions lowers the live subscription gauge
func (m *Metrics) RemoveSubscriptions(n int) {
	m.SubscriptionsActive.Sub(float64(n))
}

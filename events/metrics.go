package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bus
type Metrics struct {
	// Gauges (current values)
	SubscribersTotal   prometheus.Gauge
	SubscribersByKind  *prometheus.GaugeVec
	PublishChannelSize prometheus.Gauge

	// Counters (cumulative values)
	EventsPublishedTotal *prometheus.CounterVec
	EventsDeliveredTotal *prometheus.CounterVec
	EventsDroppedTotal   *prometheus.CounterVec
	EventsFilteredTotal  *prometheus.CounterVec
	SubscriptionsTotal   prometheus.Counter
	UnsubscriptionsTotal prometheus.Counter

	// Histograms (distributions)
	BroadcastDuration prometheus.Histogram
}

// NewMetrics creates and registers all bus metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	if namespace == "" {
		namespace = "launchpad"
	}
	if subsystem == "" {
		subsystem = "bus"
	}

	return &Metrics{
		SubscribersTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscribers_total",
			Help:      "Current number of active subscribers",
		}),
		SubscribersByKind: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscribers_by_kind",
			Help:      "Current number of subscribers by event kind",
		}, []string{"kind"}),
		PublishChannelSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_channel_size",
			Help:      "Current size of the publish channel buffer",
		}),

		EventsPublishedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Total number of processed events published",
		}, []string{"kind"}),
		EventsDeliveredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_delivered_total",
			Help:      "Total number of events delivered to subscribers",
		}, []string{"kind"}),
		EventsDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped due to full channels",
		}, []string{"kind"}),
		EventsFilteredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_filtered_total",
			Help:      "Total number of events filtered out by subscriber filters",
		}, []string{"kind"}),
		SubscriptionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions_total",
			Help:      "Total number of subscription requests",
		}),
		UnsubscriptionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unsubscriptions_total",
			Help:      "Total number of unsubscription requests",
		}),

		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broadcast_duration_seconds",
			Help:      "Event broadcast duration in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}, // 10μs to 100ms
		}),
	}
}

// ObserveBroadcast records the time taken to broadcast an event to all subscribers
func (m *Metrics) ObserveBroadcast(duration time.Duration) {
	m.BroadcastDuration.Observe(duration.Seconds())
}

// RecordEventPublished increments the published events counter
func (m *Metrics) RecordEventPublished(kind Kind) {
	m.EventsPublishedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordEventDelivered increments the delivered events counter
func (m *Metrics) RecordEventDelivered(kind Kind) {
	m.EventsDeliveredTotal.WithLabelValues(string(kind)).Inc()
}

// RecordEventDropped increments the dropped events counter
func (m *Metrics) RecordEventDropped(kind Kind) {
	m.EventsDroppedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordEventFiltered increments the filtered events counter
func (m *Metrics) RecordEventFiltered(kind Kind) {
	m.EventsFilteredTotal.WithLabelValues(string(kind)).Inc()
}

// UpdateSubscriberCount updates the total subscribers gauge
func (m *Metrics) UpdateSubscriberCount(count int) {
	m.SubscribersTotal.Set(float64(count))
}

// UpdateSubscribersByKind updates the subscribers by kind gauge
func (m *Metrics) UpdateSubscribersByKind(kind Kind, count int) {
	m.SubscribersByKind.WithLabelValues(string(kind)).Set(float64(count))
}

// UpdatePublishChannelSize updates the publish channel size gauge
func (m *Metrics) UpdatePublishChannelSize(size int) {
	m.PublishChannelSize.Set(float64(size))
}

// RecordSubscription increments the subscription counter
func (m *Metrics) RecordSubscription() {
	m.SubscriptionsTotal.Inc()
}

// RecordUnsubscription increments the unsubscription counter
func (m *Metrics) RecordUnsubscription() {
	m.UnsubscriptionsTotal.Inc()
}

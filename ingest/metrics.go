package ingest

import (
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline
type Metrics struct {
	// Gauges (current values)
	QueueDepth prometheus.Gauge

	// Counters (cumulative values)
	EventsEnqueuedTotal  *prometheus.CounterVec
	QueueDroppedTotal    prometheus.Counter
	EventsAppliedTotal   *prometheus.CounterVec
	DuplicatesTotal      *prometheus.CounterVec
	BatchesTotal         prometheus.Counter
	BatchRetriesTotal    prometheus.Counter
	BatchesPoisonedTotal prometheus.Counter
	PoisonDroppedTotal   *prometheus.CounterVec
	PublishDroppedTotal  prometheus.Counter

	// Histograms (distributions)
	BatchSize    prometheus.Histogram
	QueueLatency prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	if namespace == "" {
		namespace = "launchpad"
	}
	if subsystem == "" {
		subsystem = "ingest"
	}

	return &Metrics{
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of queued chain events",
		}),

		EventsEnqueuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_enqueued_total",
			Help:      "Total number of chain events accepted into the queue",
		}, []string{"kind"}),
		QueueDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_dropped_total",
			Help:      "Total number of events dropped because the queue was over capacity",
		}),
		EventsAppliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_applied_total",
			Help:      "Total number of events that changed stored state",
		}, []string{"kind"}),
		DuplicatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplicates_total",
			Help:      "Total number of redelivered events that collapsed onto existing records",
		}, []string{"kind"}),
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_total",
			Help:      "Total number of batches applied successfully",
		}),
		BatchRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_retries_total",
			Help:      "Total number of whole-batch retries",
		}),
		BatchesPoisonedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_poisoned_total",
			Help:      "Total number of batches that fell back to item-by-item application",
		}),
		PoisonDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poison_dropped_total",
			Help:      "Total number of events dropped from poisoned batches",
		}, []string{"kind"}),
		PublishDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_dropped_total",
			Help:      "Total number of processed events the bus rejected",
		}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_size",
			Help:      "Number of events per applied batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		QueueLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_latency_seconds",
			Help:      "Time between enqueue and successful application",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}
}

// UpdateQueueDepth updates the queue depth gauge
func (m *Metrics) UpdateQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordEnqueued increments the enqueued events counter
func (m *Metrics) RecordEnqueued(kind events.Kind) {
	m.EventsEnqueuedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordQueueDropped adds overflow drops to the dropped counter
func (m *Metrics) RecordQueueDropped(n int) {
	m.QueueDroppedTotal.Add(float64(n))
}

// RecordApplied increments the applied events counter
func (m *Metrics) RecordApplied(kind events.Kind) {
	m.EventsAppliedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordDuplicate increments the redelivery counter
func (m *Metrics) RecordDuplicate(kind events.Kind) {
	m.DuplicatesTotal.WithLabelValues(string(kind)).Inc()
}

// RecordBatchProcessed counts one successful batch and its size
func (m *Metrics) RecordBatchProcessed(size int) {
	m.BatchesTotal.Inc()
	m.BatchSize.Observe(float64(size))
}

// RecordBatchRetry increments the batch retry counter
func (m *Metrics) RecordBatchRetry() {
	m.BatchRetriesTotal.Inc()
}

// RecordBatchPoisoned increments the poisoned batch counter
func (m *Metrics) RecordBatchPoisoned() {
	m.BatchesPoisonedTotal.Inc()
}

// RecordPoisonDropped increments the poisoned-drop counter
func (m *Metrics) RecordPoisonDropped(kind events.Kind) {
	m.PoisonDroppedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordPublishDropped increments the rejected-publish counter
func (m *Metrics) RecordPublishDropped() {
	m.PublishDroppedTotal.Inc()
}

// ObserveQueueLatency records the time an event spent queued
func (m *Metrics) ObserveQueueLatency(d time.Duration) {
	m.QueueLatency.Observe(d.Seconds())
}

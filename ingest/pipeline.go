// Package ingest turns the raw chain-event stream into durable state.
//
// Events are queued in memory, batched by a timer or a queue-length
// threshold, and applied through idempotent storage writes. Each applied
// event invalidates the affected cache prefixes and is announced on the
// bus as an events.Processed for the distribution layer. A failed batch
// retries whole a bounded number of times; after that its items are
// applied one by one and only the items that still fail are dropped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"go.uber.org/zap"
)

// ErrStopped is returned by Flush after the pipeline has been stopped
var ErrStopped = errors.New("pipeline stopped")

// Publisher announces applied events to downstream consumers.
// *events.Bus satisfies it.
type Publisher interface {
	Publish(p *events.Processed) bool
}

// queueItem wraps a queued event with its enqueue time
type queueItem struct {
	ev         events.Event
	enqueuedAt time.Time
}

// Pipeline is the ingestion loop between the chain source and storage
type Pipeline struct {
	handlers *Handlers
	bus      Publisher
	logger   *zap.Logger

	batchSize  int
	flushEvery time.Duration
	retryDelay time.Duration
	maxRetries int
	queueCap   int

	mu    sync.Mutex
	queue []queueItem

	wake    chan struct{}
	flushCh chan chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// metrics holds Prometheus metrics (optional)
	metrics *Metrics
}

// NewPipeline creates the ingestion pipeline. bus and cache may be nil.
func NewPipeline(store Store, cache Invalidator, bus Publisher, cfg config.IngestConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}
	flushEvery := cfg.FlushInterval
	if flushEvery <= 0 {
		flushEvery = constants.DefaultFlushInterval
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = constants.DefaultRetryDelay
	}
	maxRetries := cfg.MaxBatchRetries
	if maxRetries <= 0 {
		maxRetries = constants.DefaultMaxBatchRetries
	}
	queueCap := cfg.QueueCap
	if queueCap <= 0 {
		queueCap = constants.DefaultQueueCap
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		handlers:   NewHandlers(store, cache, logger),
		bus:        bus,
		logger:     logger.With(zap.String("component", "ingest-pipeline")),
		batchSize:  batchSize,
		flushEvery: flushEvery,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
		queueCap:   queueCap,
		wake:       make(chan struct{}, 1),
		flushCh:    make(chan chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetMetrics enables Prometheus metrics for the pipeline
// Optional - if not called, metrics are not collected
func (p *Pipeline) SetMetrics(metrics *Metrics) {
	p.metrics = metrics
}

// Enqueue accepts one chain event. It never blocks: beyond the queue cap
// the oldest queued events are dropped with a logged warning.
func (p *Pipeline) Enqueue(ev events.Event) {
	p.mu.Lock()
	p.queue = append(p.queue, queueItem{ev: ev, enqueuedAt: time.Now()})
	var dropped int
	if len(p.queue) > p.queueCap {
		dropped = len(p.queue) - p.queueCap
		p.queue = append(p.queue[:0], p.queue[dropped:]...)
	}
	depth := len(p.queue)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordEnqueued(ev.Kind())
		p.metrics.UpdateQueueDepth(depth)
		if dropped > 0 {
			p.metrics.RecordQueueDropped(dropped)
		}
	}
	if dropped > 0 {
		p.logger.Warn("ingestion queue over capacity, dropped oldest events",
			zap.Int("dropped", dropped),
			zap.Int("queue_cap", p.queueCap))
	}

	if depth >= p.batchSize {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the current queue depth
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Run drives the batch loop: a timer tick or a full queue triggers a
// batch. It blocks until Stop is called and should run in a goroutine.
func (p *Pipeline) Run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			if n := p.Len(); n > 0 {
				p.logger.Warn("stopping with events still queued",
					zap.Int("queued", n))
			}
			return
		case <-ticker.C:
			p.processAvailable()
		case <-p.wake:
			p.processAvailable()
		case ack := <-p.flushCh:
			p.drainAll()
			close(ack)
		}
	}
}

// Flush forces immediate processing of everything queued and waits for it
// to finish. Called ahead of Stop on shutdown.
func (p *Pipeline) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.flushCh <- ack:
	case <-p.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the batch loop. Anything still queued is dropped; callers
// needing a clean drain call Flush first.
func (p *Pipeline) Stop() {
	p.cancel()
	<-p.done
}

// popBatch removes up to batchSize items from the queue head
func (p *Pipeline) popBatch() []queueItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	if n == 0 {
		return nil
	}
	if n > p.batchSize {
		n = p.batchSize
	}

	batch := make([]queueItem, n)
	copy(batch, p.queue[:n])
	p.queue = append(p.queue[:0], p.queue[n:]...)

	if p.metrics != nil {
		p.metrics.UpdateQueueDepth(len(p.queue))
	}
	return batch
}

// processAvailable applies one batch, continuing while the queue still
// holds a full batch
func (p *Pipeline) processAvailable() {
	for {
		batch := p.popBatch()
		if len(batch) == 0 {
			return
		}
		p.processBatch(batch)
		if p.Len() < p.batchSize {
			return
		}
	}
}

// drainAll applies batches until the queue is empty
func (p *Pipeline) drainAll() {
	for {
		batch := p.popBatch()
		if len(batch) == 0 {
			return
		}
		p.processBatch(batch)
	}
}

// processBatch applies one batch, retrying the whole batch on failure.
// After maxRetries consecutive failures the batch is applied item by
// item so one bad event cannot wedge the queue.
func (p *Pipeline) processBatch(batch []queueItem) {
	for attempt := 1; ; attempt++ {
		err := p.applyBatch(batch)
		if err == nil {
			if p.metrics != nil {
				p.metrics.RecordBatchProcessed(len(batch))
			}
			return
		}

		if attempt >= p.maxRetries {
			p.logger.Error("batch failed repeatedly, applying items individually",
				zap.Int("attempts", attempt),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			if p.metrics != nil {
				p.metrics.RecordBatchPoisoned()
			}
			p.applyPoisoned(batch)
			return
		}

		p.logger.Warn("batch apply failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxRetries),
			zap.Duration("delay", p.retryDelay),
			zap.Error(err))
		if p.metrics != nil {
			p.metrics.RecordBatchRetry()
		}

		select {
		case <-p.ctx.Done():
			p.logger.Warn("dropping in-flight batch at shutdown",
				zap.Int("batch_size", len(batch)))
			return
		case <-time.After(p.retryDelay):
		}
	}
}

// applyBatch applies every item in order. Announcements are held back
// until the whole batch has succeeded so a retried batch cannot announce
// the same application twice.
func (p *Pipeline) applyBatch(batch []queueItem) error {
	applied := make([]*events.Processed, 0, len(batch))
	waited := make([]time.Duration, 0, len(batch))

	for i := range batch {
		item := &batch[i]
		changed, err := p.handlers.Apply(p.ctx, item.ev)
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", item.ev.Kind(), item.ev.TxHash().Hex(), err)
		}
		if !changed {
			if p.metrics != nil {
				p.metrics.RecordDuplicate(item.ev.Kind())
			}
			continue
		}
		applied = append(applied, events.NewProcessed(item.ev))
		waited = append(waited, time.Since(item.enqueuedAt))
	}

	for i, pr := range applied {
		if p.metrics != nil {
			p.metrics.RecordApplied(pr.Kind)
			p.metrics.ObserveQueueLatency(waited[i])
		}
		p.announce(pr)
	}
	return nil
}

// applyPoisoned applies items one by one, dropping the failures
func (p *Pipeline) applyPoisoned(batch []queueItem) {
	for i := range batch {
		item := &batch[i]
		changed, err := p.handlers.Apply(p.ctx, item.ev)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordPoisonDropped(item.ev.Kind())
			}
			p.logger.Error("dropping event from poisoned batch",
				zap.String("kind", string(item.ev.Kind())),
				zap.String("tx_hash", item.ev.TxHash().Hex()),
				zap.Error(err))
			continue
		}
		if !changed {
			if p.metrics != nil {
				p.metrics.RecordDuplicate(item.ev.Kind())
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordApplied(item.ev.Kind())
			p.metrics.ObserveQueueLatency(time.Since(item.enqueuedAt))
		}
		p.announce(events.NewProcessed(item.ev))
	}
}

// announce publishes one processed event on the bus
func (p *Pipeline) announce(pr *events.Processed) {
	if p.bus == nil {
		return
	}
	if !p.bus.Publish(pr) {
		if p.metrics != nil {
			p.metrics.RecordPublishDropped()
		}
		p.logger.Warn("bus rejected processed event",
			zap.String("id", pr.ID))
	}
}

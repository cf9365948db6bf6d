// Package events defines the launchpad chain-event variants and the
// in-process bus that hands processed events from the ingestion pipeline to
// the distribution layer.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SubscriptionID is a unique identifier for a subscription
type SubscriptionID string

// SubscriptionStats tracks statistics for a subscription
type SubscriptionStats struct {
	// EventsReceived is the total number of events delivered to this subscription
	EventsReceived atomic.Uint64

	// EventsDropped is the number of events dropped due to a full channel
	EventsDropped atomic.Uint64

	// LastEventTime is the timestamp of the last delivered event
	LastEventTime atomic.Int64 // Unix timestamp in nanoseconds

	// CreatedAt is when the subscription was created
	CreatedAt time.Time
}

// Subscription represents a consumer subscription to processed events
type Subscription struct {
	// ID is the unique identifier for this subscription
	ID SubscriptionID

	// Kinds is the set of event kinds this subscription is interested in
	Kinds map[Kind]bool

	// Filter contains optional filtering conditions
	// If nil, all events of matching kinds are delivered
	Filter *Filter

	// Channel is where processed events are delivered
	Channel chan *Processed

	// CancelFunc cancels this subscription's context
	CancelFunc context.CancelFunc

	// Stats tracks statistics for this subscription
	Stats SubscriptionStats
}

// Bus is the hand-off point between the ingestion pipeline and every
// consumer of processed events (the websocket hub, the relay)
type Bus struct {
	subscribers map[SubscriptionID]*Subscription
	mu          sync.RWMutex

	publishCh     chan *Processed
	subscribeCh   chan *Subscription
	unsubscribeCh chan SubscriptionID

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	stats struct {
		totalEvents     atomic.Uint64
		totalDeliveries atomic.Uint64
		droppedEvents   atomic.Uint64
	}

	// metrics holds Prometheus metrics (optional)
	metrics *Metrics
}

// NewBus creates a new Bus with the given buffer sizes
func NewBus(publishBufferSize, subscribeBufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		subscribers:   make(map[SubscriptionID]*Subscription),
		publishCh:     make(chan *Processed, publishBufferSize),
		subscribeCh:   make(chan *Subscription, subscribeBufferSize),
		unsubscribeCh: make(chan SubscriptionID, subscribeBufferSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetMetrics enables Prometheus metrics for the bus
// Optional - if not called, metrics are not collected
func (b *Bus) SetMetrics(metrics *Metrics) {
	b.metrics = metrics
}

// Run starts the bus main loop
// This should be called in a goroutine
func (b *Bus) Run() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			b.closeAllSubscriptions()
			return

		case sub := <-b.subscribeCh:
			b.mu.Lock()
			b.subscribers[sub.ID] = sub
			b.mu.Unlock()

			if b.metrics != nil {
				b.metrics.RecordSubscription()
				b.updateSubscriberMetrics()
			}

		case subID := <-b.unsubscribeCh:
			b.mu.Lock()
			if sub, exists := b.subscribers[subID]; exists {
				close(sub.Channel)
				delete(b.subscribers, subID)
			}
			b.mu.Unlock()

			if b.metrics != nil {
				b.metrics.RecordUnsubscription()
				b.updateSubscriberMetrics()
			}

		case p := <-b.publishCh:
			b.stats.totalEvents.Add(1)

			if b.metrics != nil {
				b.metrics.RecordEventPublished(p.Kind)
			}

			b.broadcast(p)
		}
	}
}

// broadcast sends a processed event to all interested subscribers
func (b *Bus) broadcast(p *Processed) {
	startTime := time.Now()
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.Kinds[p.Kind] {
			continue
		}

		if sub.Filter != nil && !sub.Filter.Match(p) {
			if b.metrics != nil {
				b.metrics.RecordEventFiltered(p.Kind)
			}
			continue
		}

		// Non-blocking send; a slow consumer loses events instead of
		// stalling the pipeline
		select {
		case sub.Channel <- p:
			b.stats.totalDeliveries.Add(1)
			sub.Stats.EventsReceived.Add(1)
			sub.Stats.LastEventTime.Store(time.Now().UnixNano())
			if b.metrics != nil {
				b.metrics.RecordEventDelivered(p.Kind)
			}
		default:
			b.stats.droppedEvents.Add(1)
			sub.Stats.EventsDropped.Add(1)
			if b.metrics != nil {
				b.metrics.RecordEventDropped(p.Kind)
			}
		}
	}

	if b.metrics != nil {
		b.metrics.ObserveBroadcast(time.Since(startTime))
	}
}

// closeAllSubscriptions closes all active subscriptions
func (b *Bus) closeAllSubscriptions() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.Channel)
		if sub.CancelFunc != nil {
			sub.CancelFunc()
		}
	}

	b.subscribers = make(map[SubscriptionID]*Subscription)
}

// Stop gracefully stops the bus
func (b *Bus) Stop() {
	b.cancel()
	<-b.done
}

// SubscriberCount returns the current number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns the current statistics
func (b *Bus) Stats() (totalEvents, totalDeliveries, droppedEvents uint64) {
	return b.stats.totalEvents.Load(),
		b.stats.totalDeliveries.Load(),
		b.stats.droppedEvents.Load()
}

// Publish publishes a processed event to all interested subscribers
// Non-blocking - returns false if the publish channel is full or the bus
// is stopped
func (b *Bus) Publish(p *Processed) bool {
	select {
	case <-b.ctx.Done():
		return false
	default:
	}

	select {
	case b.publishCh <- p:
		return true
	default:
		return false
	}
}

// Subscribe creates a new subscription for the given event kinds
// filter can be nil for no filtering; returns nil if the filter is invalid
// or the bus is stopping
func (b *Bus) Subscribe(id SubscriptionID, kinds []Kind, filter *Filter, channelSize int) *Subscription {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil
		}
		// Clone to prevent external modification after registration
		filter = filter.Clone()
	}

	kindSet := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	ctx, cancel := context.WithCancel(b.ctx)

	sub := &Subscription{
		ID:         id,
		Kinds:      kindSet,
		Filter:     filter,
		Channel:    make(chan *Processed, channelSize),
		CancelFunc: cancel,
		Stats: SubscriptionStats{
			CreatedAt: time.Now(),
		},
	}

	select {
	case b.subscribeCh <- sub:
		return sub
	case <-ctx.Done():
		close(sub.Channel)
		return nil
	}
}

// Unsubscribe removes a subscription
func (b *Bus) Unsubscribe(id SubscriptionID) {
	select {
	case b.unsubscribeCh <- id:
	case <-b.ctx.Done():
	}
}

// updateSubscriberMetrics refreshes subscriber gauges
func (b *Bus) updateSubscriberMetrics() {
	if b.metrics == nil {
		return
	}

	b.mu.RLock()
	totalCount := len(b.subscribers)
	kindCount := make(map[Kind]int)
	for _, sub := range b.subscribers {
		for kind := range sub.Kinds {
			kindCount[kind]++
		}
	}
	b.mu.RUnlock()

	b.metrics.UpdateSubscriberCount(totalCount)
	for kind, count := range kindCount {
		b.metrics.UpdateSubscribersByKind(kind, count)
	}
	b.metrics.UpdatePublishChannelSize(len(b.publishCh))
}

// SubscriberInfo contains information about a subscriber
type SubscriberInfo struct {
	ID             SubscriptionID
	Kinds          []Kind
	HasFilter      bool
	EventsReceived uint64
	EventsDropped  uint64
	LastEventTime  time.Time
	CreatedAt      time.Time
	Uptime         time.Duration
}

// subscriberInfoLocked builds a SubscriberInfo; callers must hold mu
func (b *Bus) subscriberInfoLocked(sub *Subscription) *SubscriberInfo {
	kinds := make([]Kind, 0, len(sub.Kinds))
	for k := range sub.Kinds {
		kinds = append(kinds, k)
	}

	lastEventNano := sub.Stats.LastEventTime.Load()
	var lastEventTime time.Time
	if lastEventNano > 0 {
		lastEventTime = time.Unix(0, lastEventNano)
	}

	return &SubscriberInfo{
		ID:             sub.ID,
		Kinds:          kinds,
		HasFilter:      sub.Filter != nil,
		EventsReceived: sub.Stats.EventsReceived.Load(),
		EventsDropped:  sub.Stats.EventsDropped.Load(),
		LastEventTime:  lastEventTime,
		CreatedAt:      sub.Stats.CreatedAt,
		Uptime:         time.Since(sub.Stats.CreatedAt),
	}
}

// GetSubscriberInfo returns information about a specific subscriber
func (b *Bus) GetSubscriberInfo(id SubscriptionID) *SubscriberInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return nil
	}
	return b.subscriberInfoLocked(sub)
}

// GetAllSubscriberInfo returns information about all subscribers
func (b *Bus) GetAllSubscriberInfo() []SubscriberInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]SubscriberInfo, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		infos = append(infos, *b.subscriberInfoLocked(sub))
	}

	return infos
}

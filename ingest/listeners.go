package ingest

import (
	"fmt"
	"sync"

	"github.com/0xmhha/launchpad-go/chain"
	"github.com/0xmhha/launchpad-go/events"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EntitySource opens per-token log subscriptions. *chain.Source
// satisfies it.
type EntitySource interface {
	SubscribeEntity(token common.Address, kinds []events.Kind, fn chain.Handler) (chain.SubscriptionID, error)
	Unsubscribe(id chain.SubscriptionID)
}

// entityListener is one token's live subscription with its watcher count
type entityListener struct {
	id   chain.SubscriptionID
	refs int
}

// EntityListeners reference-counts per-token ledger subscriptions for the
// enriched trade feed. The first watcher of a token opens the
// subscription, the last one closing tears it down. Events flow into the
// sink, normally Pipeline.Enqueue.
type EntityListeners struct {
	source EntitySource
	sink   func(events.Event)
	logger *zap.Logger

	mu   sync.Mutex
	refs map[common.Address]*entityListener
}

// NewEntityListeners creates the per-token listener registry
func NewEntityListeners(source EntitySource, sink func(events.Event), logger *zap.Logger) *EntityListeners {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityListeners{
		source: source,
		sink:   sink,
		logger: logger.With(zap.String("component", "entity-listeners")),
		refs:   make(map[common.Address]*entityListener),
	}
}

// Acquire registers interest in a token's enriched trade feed
func (l *EntityListeners) Acquire(token common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lst, ok := l.refs[token]; ok {
		lst.refs++
		return nil
	}

	id, err := l.source.SubscribeEntity(token, []events.Kind{events.KindDetailedTransaction}, l.sink)
	if err != nil {
		return fmt.Errorf("subscribe entity %s: %w", token.Hex(), err)
	}
	l.refs[token] = &entityListener{id: id, refs: 1}
	l.logger.Debug("entity listener opened",
		zap.String("token", token.Hex()))
	return nil
}

// Release drops one interest; the last release closes the subscription
func (l *EntityListeners) Release(token common.Address) {
	l.mu.Lock()
	lst, ok := l.refs[token]
	var id chain.SubscriptionID
	var closeIt bool
	if ok {
		lst.refs--
		if lst.refs <= 0 {
			delete(l.refs, token)
			id = lst.id
			closeIt = true
		}
	}
	l.mu.Unlock()

	if closeIt {
		l.source.Unsubscribe(id)
		l.logger.Debug("entity listener closed",
			zap.String("token", token.Hex()))
	}
}

// Active returns the number of tokens with a live listener
func (l *EntityListeners) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refs)
}

// Close tears down every listener
func (l *EntityListeners) Close() {
	l.mu.Lock()
	refs := l.refs
	l.refs = make(map[common.Address]*entityListener)
	l.mu.Unlock()

	for _, lst := range refs {
		l.source.Unsubscribe(lst.id)
	}
}

package websocket

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SubKind is the subscription channel family
type SubKind string

const (
	// SubToken delivers events for one token address
	SubToken SubKind = "token"
	// SubMarket delivers every event under the global market feed
	SubMarket SubKind = "market"
	// SubUser delivers events whose owner matches the subscribed user
	SubUser SubKind = "user"
	// SubPortfolio delivers portfolio changes for the subscribed user
	SubPortfolio SubKind = "portfolio"
)

// MarketID is the only valid id for market subscriptions
const MarketID = "global"

// Valid reports whether k is a known subscription kind
func (k SubKind) Valid() bool {
	switch k {
	case SubToken, SubMarket, SubUser, SubPortfolio:
		return true
	}
	return false
}

// ownerScoped reports whether k routes by authenticated owner identity
func (k SubKind) ownerScoped() bool {
	return k == SubUser || k == SubPortfolio
}

// Key identifies one subscription channel. IDs are stored lowercased so
// token addresses and user ids are insensitive to checksum casing.
type Key struct {
	Kind SubKind
	ID   string
}

// String renders the client-visible subscription id
func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Match is one subscription channel with the connections currently on it
type Match struct {
	Key   Key
	Conns []string
}

// Registry is the many-to-many map between connections and subscription
// keys. The forward map answers "who gets this event", the inverted map
// makes disconnect cleanup proportional to the connection's own
// subscriptions. One mutex guards both so they are never observed out of
// sync.
type Registry struct {
	mu     sync.RWMutex
	byKey  map[Key]map[string]struct{}
	byConn map[string]map[Key]struct{}
}

// NewRegistry creates an empty subscription registry
func NewRegistry() *Registry {
	return &Registry{
		byKey:  make(map[Key]map[string]struct{}),
		byConn: make(map[string]map[Key]struct{}),
	}
}

// Subscribe registers connID on the channel. Registering the same tuple
// twice is a no-op; the second return reports whether the subscription is
// new for this connection.
func (r *Registry) Subscribe(connID string, kind SubKind, id string) (Key, bool) {
	key := Key{Kind: kind, ID: strings.ToLower(id)}

	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byKey[key]
	if !ok {
		conns = make(map[string]struct{})
		r.byKey[key] = conns
	}
	if _, dup := conns[connID]; dup {
		return key, false
	}
	conns[connID] = struct{}{}

	keys, ok := r.byConn[connID]
	if !ok {
		keys = make(map[Key]struct{})
		r.byConn[connID] = keys
	}
	keys[key] = struct{}{}
	return key, true
}

// Unsubscribe removes connID from the channel and prunes the key when its
// last holder leaves. The second return reports whether anything was
// removed.
func (r *Registry) Unsubscribe(connID string, kind SubKind, id string) (Key, bool) {
	key := Key{Kind: kind, ID: strings.ToLower(id)}

	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byKey[key]
	if !ok {
		return key, false
	}
	if _, held := conns[connID]; !held {
		return key, false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byKey, key)
	}

	if keys, ok := r.byConn[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.byConn, connID)
		}
	}
	return key, true
}

// RemoveConnection drops every subscription the connection holds and
// returns the keys it held, in no particular order
func (r *Registry) RemoveConnection(connID string) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)

	removed := make([]Key, 0, len(keys))
	for key := range keys {
		removed = append(removed, key)
		conns, ok := r.byKey[key]
		if !ok {
			continue
		}
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byKey, key)
		}
	}
	return removed
}

// Match returns the channels a processed event lands on: the exact token
// channel, the market channel unconditionally, and the owner's user and
// portfolio channels when the event carries an owner.
func (r *Registry) Match(token common.Address, owner common.Address) []Match {
	candidates := make([]Key, 0, 4)
	candidates = append(candidates,
		Key{Kind: SubToken, ID: strings.ToLower(token.Hex())},
		Key{Kind: SubMarket, ID: MarketID},
	)
	if owner != (common.Address{}) {
		ownerID := strings.ToLower(owner.Hex())
		candidates = append(candidates,
			Key{Kind: SubUser, ID: ownerID},
			Key{Kind: SubPortfolio, ID: ownerID},
		)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]Match, 0, len(candidates))
	for _, key := range candidates {
		conns := r.byKey[key]
		if len(conns) == 0 {
			continue
		}
		m := Match{Key: key, Conns: make([]string, 0, len(conns))}
		for connID := range conns {
			m.Conns = append(m.Conns, connID)
		}
		matches = append(matches, m)
	}
	return matches
}

// Counts returns the number of live channels and total subscriptions
func (r *Registry) Counts() (keys, subscriptions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys = len(r.byKey)
	for _, held := range r.byConn {
		subscriptions += len(held)
	}
	return keys, subscriptions
}

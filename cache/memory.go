package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/launchpad-go/internal/constants"
)

// entry is a single cached value
type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// expired returns true once the entry outlived its ttl
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// MemoryCache is an in-process Cache backed by a map with a background
// janitor that sweeps expired entries
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]*entry

	defaultTTL time.Duration

	hits   int64
	misses int64

	stopOnce sync.Once
	stop     chan struct{}
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache. Non-positive arguments fall back
// to the package defaults.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = constants.DefaultCacheCleanupInterval
	}

	c := &MemoryCache{
		items:      make(map[string]*entry),
		defaultTTL: ttl,
		stop:       make(chan struct{}),
	}

	go c.janitor(cleanupInterval)

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if e.expired(time.Now()) {
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// Set stores a value in the cache
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &entry{
		value:      value,
		insertedAt: time.Now(),
		ttl:        ttl,
	}
}

// Delete removes a single key
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// DeletePrefix removes every key starting with prefix
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			deleted++
		}
	}
	return deleted
}

// Len returns the number of stored entries, including expired entries the
// janitor has not swept yet
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Stats returns hit and miss counts and the current size
func (c *MemoryCache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses, len(c.items)
}

// Close stops the janitor. Safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// janitor periodically sweeps expired entries
func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes all expired entries
func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
		}
	}
}

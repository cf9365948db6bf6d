// Package cache provides the derived-state cache sitting between the API
// read paths and storage.
//
// Entries are invalidated by key prefix when the ingestion pipeline applies
// a write for an entity, and passively by TTL otherwise. Two backends
// exist: an in-process map cache (the default) and Redis for deployments
// where several nodes must share invalidation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Cache is a TTL key-value store with prefix invalidation
type Cache interface {
	// Get returns the cached value for key, or false on a miss
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key. A non-positive ttl selects the
	// backend's default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes a single key
	Delete(ctx context.Context, key string)

	// DeletePrefix removes every key starting with prefix and returns
	// the number of keys removed
	DeletePrefix(ctx context.Context, prefix string) int

	// Len returns the number of stored keys
	Len() int

	// Close releases backend resources
	Close() error
}

// New creates a Cache based on the configured backend
func New(cfg config.CacheConfig, logger *zap.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, cfg.CleanupInterval), nil
	case "redis":
		return NewRedisCache(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Cache key layout. Entity invalidation relies on these shapes: every key
// derived from one token shares that token's prefix, market payloads share
// the market prefix. Addresses are lowercased so keys are insensitive to
// checksum casing.

// TokenKey returns the cache key for a token's info payload
// Format: token:{address}
func TokenKey(addr common.Address) string {
	return "token:" + strings.ToLower(addr.Hex())
}

// TokenTradesKey returns the cache key for a token's recent trades payload
// Format: token:{address}:trades
func TokenTradesKey(addr common.Address) string {
	return TokenKey(addr) + ":trades"
}

// TokenPrefix covers every cache key derived from one token
func TokenPrefix(addr common.Address) string {
	return TokenKey(addr)
}

// MarketStatsKey returns the cache key for the market stats payload
func MarketStatsKey() string {
	return "market:stats"
}

// MarketPrefix covers every market-wide payload
func MarketPrefix() string {
	return "market:"
}

// AnalyticsKey returns the cache key for one token's daily analytics
// Format: analytics:{address}:{date}
func AnalyticsKey(addr common.Address, date string) string {
	return "analytics:" + strings.ToLower(addr.Hex()) + ":" + date
}

// AnalyticsPrefix covers every analytics day of one token
func AnalyticsPrefix(addr common.Address) string {
	return "analytics:" + strings.ToLower(addr.Hex()) + ":"
}

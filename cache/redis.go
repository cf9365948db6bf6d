package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the page size for SCAN-based prefix deletes
const scanBatch = 100

// RedisCache is a Cache backed by a Redis server. Backend errors are
// logged and surfaced as misses so readers fall through to storage.
type RedisCache struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
	logger     *zap.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a ping
func NewRedisCache(cfg config.CacheConfig, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	dialTimeout := cfg.Redis.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = constants.DefaultRedisDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	return &RedisCache{
		client:     client,
		defaultTTL: ttl,
		logger:     logger.With(zap.String("component", "redis-cache")),
	}, nil
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Set stores a value in Redis with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a single key
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// DeletePrefix scans for keys under prefix and deletes them in batches
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) int {
	deleted := 0
	batch := make([]string, 0, scanBatch)

	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatch {
			deleted += c.deleteKeys(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed", zap.String("prefix", prefix), zap.Error(err))
	}
	if len(batch) > 0 {
		deleted += c.deleteKeys(ctx, batch)
	}

	return deleted
}

func (c *RedisCache) deleteKeys(ctx context.Context, keys []string) int {
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("redis del failed", zap.Int("keys", len(keys)), zap.Error(err))
		return 0
	}
	return int(n)
}

// Len returns the size of the backing database. With a shared database
// this counts keys beyond the launchpad's own.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.logger.Warn("redis dbsize failed", zap.Error(err))
		return 0
	}
	return int(n)
}

// Healthy reports whether the server answers a ping
func (c *RedisCache) Healthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// Close closes the client connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

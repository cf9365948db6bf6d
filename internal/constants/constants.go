// Package constants provides centralized default values used across the launchpad backend.
package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "0.0.0.0"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8080

	// MinPort is the minimum valid port number
	MinPort = 1

	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default max HTTP header size (1 MB)
	DefaultMaxHeaderBytes = 1 << 20
)

// API Path Constants
const (
	// APIPathWebSocket is the websocket endpoint path
	APIPathWebSocket = "/ws"

	// APIPathGraphQL is the GraphQL endpoint path
	APIPathGraphQL = "/graphql"

	// APIPathPlayground is the GraphQL playground path
	APIPathPlayground = "/playground"

	// APIPathJSONRPC is the JSON-RPC endpoint path
	APIPathJSONRPC = "/rpc"

	// APIPathHealth is the health check endpoint path
	APIPathHealth = "/health"

	// APIPathMetrics is the Prometheus metrics endpoint path
	APIPathMetrics = "/metrics"
)

// Ingestion Constants
const (
	// DefaultBatchSize is the queue length that triggers an immediate batch
	DefaultBatchSize = 10

	// DefaultFlushInterval is the timer interval for batch processing
	DefaultFlushInterval = 1 * time.Second

	// DefaultRetryDelay is the delay before retrying a failed batch
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxBatchRetries is the number of consecutive batch failures
	// before items are applied individually and failures dropped
	DefaultMaxBatchRetries = 3

	// DefaultQueueCap is the soft cap on the ingestion queue; beyond it
	// the oldest items are dropped
	DefaultQueueCap = 10000
)

// WebSocket Constants
const (
	// DefaultMaxConnections is the connection ceiling for the hub
	DefaultMaxConnections = 1000

	// DefaultPingInterval is the server ping cadence per connection
	DefaultPingInterval = 30 * time.Second

	// DefaultWriteWait is the write deadline for a single outbound frame
	DefaultWriteWait = 10 * time.Second

	// DefaultSendBuffer is the per-connection outbound channel capacity
	DefaultSendBuffer = 256

	// DefaultReadLimit is the maximum inbound frame size in bytes
	DefaultReadLimit = 4096

	// DefaultWSReadBuffer is the websocket upgrader read buffer size
	DefaultWSReadBuffer = 1024

	// DefaultWSWriteBuffer is the websocket upgrader write buffer size
	DefaultWSWriteBuffer = 1024
)

// Event Bus Constants
const (
	// DefaultEventBufferSize is the publish channel capacity of the event bus
	DefaultEventBufferSize = 1000

	// DefaultSubscriberBuffer is the per-subscriber channel capacity
	DefaultSubscriberBuffer = 100
)

// Cache Constants
const (
	// DefaultCacheTTL is the default lifetime of a cache entry
	DefaultCacheTTL = 30 * time.Second

	// DefaultCacheCleanupInterval is the janitor sweep interval for expired entries
	DefaultCacheCleanupInterval = 1 * time.Minute

	// DefaultRedisPoolSize is the default Redis connection pool size
	DefaultRedisPoolSize = 10

	// DefaultRedisDialTimeout is the default Redis dial timeout
	DefaultRedisDialTimeout = 5 * time.Second

	// DefaultRedisOpTimeout is the default Redis read/write timeout
	DefaultRedisOpTimeout = 3 * time.Second
)

// Storage Constants
const (
	// DefaultDBPath is the default PebbleDB data directory
	DefaultDBPath = "./data"

	// DefaultCacheSize is the default PebbleDB block cache size in MB
	DefaultCacheSize = 128

	// DefaultMaxOpenFiles is the default max open file descriptors for PebbleDB
	DefaultMaxOpenFiles = 1000

	// DefaultWriteBuffer is the default PebbleDB memtable size in MB
	DefaultWriteBuffer = 64
)

// Chain Constants
const (
	// DefaultChainEndpoint is the default ledger websocket endpoint
	DefaultChainEndpoint = "ws://localhost:8546"

	// DefaultChainTimeout is the default timeout for chain RPC calls
	DefaultChainTimeout = 30 * time.Second

	// DefaultRedialDelay is the base delay before resubscribing after a
	// dropped log subscription
	DefaultRedialDelay = 3 * time.Second
)

// Pagination Constants
const (
	// DefaultPageLimit is the default page size for list queries
	DefaultPageLimit = 20

	// MaxPageLimit is the maximum allowed page size for list queries
	MaxPageLimit = 100
)

// Rate Limiting Constants
const (
	// DefaultRateLimit is the default per-client request rate in requests per second
	DefaultRateLimit = 50

	// DefaultRateBurst is the default per-client burst allowance
	DefaultRateBurst = 100
)

// Relay Constants
const (
	// DefaultRelayTopic is the default Kafka topic for processed events
	DefaultRelayTopic = "launchpad.events"

	// DefaultRelayBatchSize is the default Kafka producer batch size
	DefaultRelayBatchSize = 100

	// DefaultRelayLinger is the default Kafka producer batch linger
	DefaultRelayLinger = 100 * time.Millisecond
)

// Watchlist Constants
const (
	// DefaultWatchlistMaxPerUser caps the tokens one user can watch
	DefaultWatchlistMaxPerUser = 200

	// DefaultWatchlistExpectedTokens sizes the watched-token bloom filter
	DefaultWatchlistExpectedTokens = 100000

	// DefaultWatchlistFalsePositiveRate is the bloom filter's target
	// false positive rate
	DefaultWatchlistFalsePositiveRate = 0.0001
)

// Notification Constants
const (
	// DefaultNotifyTimeout bounds one webhook delivery attempt
	DefaultNotifyTimeout = 10 * time.Second

	// DefaultNotifyMaxAttempts bounds delivery attempts per event
	DefaultNotifyMaxAttempts = 3

	// DefaultNotifyRetryDelay is the wait between delivery attempts
	DefaultNotifyRetryDelay = 1 * time.Second
)

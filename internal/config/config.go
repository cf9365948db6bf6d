// Package config provides configuration loading for the launchpad backend.
//
// Configuration is resolved in layers: defaults, then an optional YAML file,
// then LAUNCHPAD_* environment variables, then validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/launchpad-go/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the launchpad backend
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Hub       HubConfig       `yaml:"hub"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	Relay     RelayConfig     `yaml:"relay"`
	Notify    NotifyConfig    `yaml:"notify"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// ChainConfig holds ledger connection configuration
type ChainConfig struct {
	// Endpoint is the websocket RPC endpoint of the ledger node
	Endpoint string `yaml:"endpoint"`
	// Contract is the launchpad contract address whose logs are ingested
	Contract string `yaml:"contract"`
	// Timeout bounds individual RPC calls
	Timeout time.Duration `yaml:"timeout"`
	// RedialDelay is the base wait before resubscribing a dropped log stream
	RedialDelay time.Duration `yaml:"redial_delay"`
}

// DatabaseConfig holds persisted store configuration
type DatabaseConfig struct {
	// Backend selects the store implementation: "pebble" or "memory"
	Backend string `yaml:"backend"`
	// Path is the PebbleDB data directory
	Path string `yaml:"path"`
	// CacheSize is the PebbleDB block cache size in MB
	CacheSize int `yaml:"cache_size"`
	// MaxOpenFiles limits open file descriptors
	MaxOpenFiles int `yaml:"max_open_files"`
	// WriteBuffer is the memtable size in MB
	WriteBuffer int `yaml:"write_buffer"`
}

// CacheConfig holds derived-state cache configuration
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" or "redis"
	Backend string `yaml:"backend"`
	// TTL is the default entry lifetime
	TTL time.Duration `yaml:"ttl"`
	// CleanupInterval is the expired-entry sweep cadence (memory backend)
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// Redis holds connection settings for the redis backend
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// IngestConfig holds ingestion pipeline configuration
type IngestConfig struct {
	// BatchSize is the queue length that triggers an immediate batch
	BatchSize int `yaml:"batch_size"`
	// FlushInterval is the batch timer interval
	FlushInterval time.Duration `yaml:"flush_interval"`
	// RetryDelay is the wait before retrying a failed batch
	RetryDelay time.Duration `yaml:"retry_delay"`
	// MaxBatchRetries is the consecutive-failure bound before a batch is
	// declared poisoned and applied item by item
	MaxBatchRetries int `yaml:"max_batch_retries"`
	// QueueCap is the soft cap on queued events; the oldest are dropped beyond it
	QueueCap int `yaml:"queue_cap"`
}

// HubConfig holds websocket hub configuration
type HubConfig struct {
	// MaxConnections is the live-connection ceiling
	MaxConnections int `yaml:"max_connections"`
	// PingInterval is the per-connection ping cadence; two missed
	// intervals close the connection
	PingInterval time.Duration `yaml:"ping_interval"`
	// AuthSecret is the shared secret for session token verification
	AuthSecret string `yaml:"auth_secret"`
}

// WatchlistConfig holds per-user token watchlist configuration
type WatchlistConfig struct {
	// Enabled turns persisted user watchlists on
	Enabled bool `yaml:"enabled"`
	// MaxPerUser caps the tokens one user can watch
	MaxPerUser int `yaml:"max_per_user"`
	// ExpectedTokens sizes the watched-token bloom filter
	ExpectedTokens int `yaml:"expected_tokens"`
	// FalsePositiveRate is the bloom filter's target false positive rate
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// RelayConfig holds Kafka relay configuration
type RelayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// ClientID identifies this producer to the brokers
	ClientID string `yaml:"client_id"`
	// Compression selects the codec: "", "gzip", "snappy", "lz4", "zstd"
	Compression string        `yaml:"compression"`
	BatchSize   int           `yaml:"batch_size"`
	Linger      time.Duration `yaml:"linger"`
	// RequiredAcks: 0 none, 1 leader, -1 all
	RequiredAcks  int    `yaml:"required_acks"`
	SASLMechanism string `yaml:"sasl_mechanism"`
	SASLUsername  string `yaml:"sasl_username"`
	SASLPassword  string `yaml:"sasl_password"`
	TLS           bool   `yaml:"tls"`
}

// NotifyConfig holds webhook notification configuration
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
	// WebhookURL receives one POST per matching processed event
	WebhookURL string `yaml:"webhook_url"`
	// Secret signs payloads with HMAC-SHA256 when set
	Secret string `yaml:"secret"`
	// Kinds filters delivered event kinds; empty means the launch
	// milestones (token_created, token_graduated)
	Kinds []string `yaml:"kinds"`
	// Timeout bounds one delivery attempt
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts bounds delivery attempts per event
	MaxAttempts int `yaml:"max_attempts"`
	// RetryDelay is the wait between delivery attempts
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	EnableGraphQL   bool     `yaml:"enable_graphql"`
	EnableCORS      bool     `yaml:"enable_cors"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	EnableRateLimit bool     `yaml:"enable_rate_limit"`
	RateLimit       float64  `yaml:"rate_limit"`
	RateBurst       int      `yaml:"rate_burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	// Chain defaults
	if c.Chain.Endpoint == "" {
		c.Chain.Endpoint = constants.DefaultChainEndpoint
	}
	if c.Chain.Timeout == 0 {
		c.Chain.Timeout = constants.DefaultChainTimeout
	}
	if c.Chain.RedialDelay == 0 {
		c.Chain.RedialDelay = constants.DefaultRedialDelay
	}

	// Database defaults
	if c.Database.Backend == "" {
		c.Database.Backend = "pebble"
	}
	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDBPath
	}
	if c.Database.CacheSize == 0 {
		c.Database.CacheSize = constants.DefaultCacheSize
	}
	if c.Database.MaxOpenFiles == 0 {
		c.Database.MaxOpenFiles = constants.DefaultMaxOpenFiles
	}
	if c.Database.WriteBuffer == 0 {
		c.Database.WriteBuffer = constants.DefaultWriteBuffer
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = constants.DefaultCacheTTL
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = constants.DefaultCacheCleanupInterval
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.PoolSize == 0 {
		c.Cache.Redis.PoolSize = constants.DefaultRedisPoolSize
	}
	if c.Cache.Redis.DialTimeout == 0 {
		c.Cache.Redis.DialTimeout = constants.DefaultRedisDialTimeout
	}
	if c.Cache.Redis.ReadTimeout == 0 {
		c.Cache.Redis.ReadTimeout = constants.DefaultRedisOpTimeout
	}
	if c.Cache.Redis.WriteTimeout == 0 {
		c.Cache.Redis.WriteTimeout = constants.DefaultRedisOpTimeout
	}

	// Ingest defaults
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = constants.DefaultBatchSize
	}
	if c.Ingest.FlushInterval == 0 {
		c.Ingest.FlushInterval = constants.DefaultFlushInterval
	}
	if c.Ingest.RetryDelay == 0 {
		c.Ingest.RetryDelay = constants.DefaultRetryDelay
	}
	if c.Ingest.MaxBatchRetries == 0 {
		c.Ingest.MaxBatchRetries = constants.DefaultMaxBatchRetries
	}
	if c.Ingest.QueueCap == 0 {
		c.Ingest.QueueCap = constants.DefaultQueueCap
	}

	// Hub defaults
	if c.Hub.MaxConnections == 0 {
		c.Hub.MaxConnections = constants.DefaultMaxConnections
	}
	if c.Hub.PingInterval == 0 {
		c.Hub.PingInterval = constants.DefaultPingInterval
	}

	// Watchlist defaults
	if c.Watchlist.MaxPerUser == 0 {
		c.Watchlist.MaxPerUser = constants.DefaultWatchlistMaxPerUser
	}
	if c.Watchlist.ExpectedTokens == 0 {
		c.Watchlist.ExpectedTokens = constants.DefaultWatchlistExpectedTokens
	}
	if c.Watchlist.FalsePositiveRate == 0 {
		c.Watchlist.FalsePositiveRate = constants.DefaultWatchlistFalsePositiveRate
	}

	// Relay defaults
	if c.Relay.Topic == "" {
		c.Relay.Topic = constants.DefaultRelayTopic
	}
	if c.Relay.ClientID == "" {
		c.Relay.ClientID = "launchpad"
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = constants.DefaultRelayBatchSize
	}
	if c.Relay.Linger == 0 {
		c.Relay.Linger = constants.DefaultRelayLinger
	}
	if c.Relay.RequiredAcks == 0 {
		c.Relay.RequiredAcks = 1
	}

	// Notify defaults
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = constants.DefaultNotifyTimeout
	}
	if c.Notify.MaxAttempts == 0 {
		c.Notify.MaxAttempts = constants.DefaultNotifyMaxAttempts
	}
	if c.Notify.RetryDelay == 0 {
		c.Notify.RetryDelay = constants.DefaultNotifyRetryDelay
	}

	// API defaults
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = constants.DefaultIdleTimeout
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = constants.DefaultRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = constants.DefaultRateBurst
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
// Environment variables take precedence over file configuration
func (c *Config) LoadFromEnv() error {
	// Chain configuration
	if endpoint := os.Getenv("LAUNCHPAD_CHAIN_ENDPOINT"); endpoint != "" {
		c.Chain.Endpoint = endpoint
	}
	if contract := os.Getenv("LAUNCHPAD_CHAIN_CONTRACT"); contract != "" {
		c.Chain.Contract = contract
	}
	if timeout := os.Getenv("LAUNCHPAD_CHAIN_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_CHAIN_TIMEOUT: %w", err)
		}
		c.Chain.Timeout = duration
	}

	// Database configuration
	if backend := os.Getenv("LAUNCHPAD_DB_BACKEND"); backend != "" {
		c.Database.Backend = backend
	}
	if path := os.Getenv("LAUNCHPAD_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if cacheSize := os.Getenv("LAUNCHPAD_DB_CACHE_SIZE"); cacheSize != "" {
		val, err := strconv.Atoi(cacheSize)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_DB_CACHE_SIZE: %w", err)
		}
		c.Database.CacheSize = val
	}

	// Cache configuration
	if backend := os.Getenv("LAUNCHPAD_CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = backend
	}
	if ttl := os.Getenv("LAUNCHPAD_CACHE_TTL"); ttl != "" {
		duration, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = duration
	}
	if addr := os.Getenv("LAUNCHPAD_REDIS_ADDR"); addr != "" {
		c.Cache.Redis.Addr = addr
	}
	if password := os.Getenv("LAUNCHPAD_REDIS_PASSWORD"); password != "" {
		c.Cache.Redis.Password = password
	}
	if db := os.Getenv("LAUNCHPAD_REDIS_DB"); db != "" {
		val, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_REDIS_DB: %w", err)
		}
		c.Cache.Redis.DB = val
	}

	// Ingest configuration
	if batchSize := os.Getenv("LAUNCHPAD_INGEST_BATCH_SIZE"); batchSize != "" {
		val, err := strconv.Atoi(batchSize)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_INGEST_BATCH_SIZE: %w", err)
		}
		c.Ingest.BatchSize = val
	}
	if interval := os.Getenv("LAUNCHPAD_INGEST_FLUSH_INTERVAL"); interval != "" {
		duration, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_INGEST_FLUSH_INTERVAL: %w", err)
		}
		c.Ingest.FlushInterval = duration
	}
	if queueCap := os.Getenv("LAUNCHPAD_INGEST_QUEUE_CAP"); queueCap != "" {
		val, err := strconv.Atoi(queueCap)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_INGEST_QUEUE_CAP: %w", err)
		}
		c.Ingest.QueueCap = val
	}

	// Hub configuration
	if maxConns := os.Getenv("LAUNCHPAD_HUB_MAX_CONNECTIONS"); maxConns != "" {
		val, err := strconv.Atoi(maxConns)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_HUB_MAX_CONNECTIONS: %w", err)
		}
		c.Hub.MaxConnections = val
	}
	if interval := os.Getenv("LAUNCHPAD_HUB_PING_INTERVAL"); interval != "" {
		duration, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_HUB_PING_INTERVAL: %w", err)
		}
		c.Hub.PingInterval = duration
	}
	if secret := os.Getenv("LAUNCHPAD_HUB_AUTH_SECRET"); secret != "" {
		c.Hub.AuthSecret = secret
	}

	// Watchlist configuration
	if enabled := os.Getenv("LAUNCHPAD_WATCHLIST_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_WATCHLIST_ENABLED: %w", err)
		}
		c.Watchlist.Enabled = val
	}
	if maxPerUser := os.Getenv("LAUNCHPAD_WATCHLIST_MAX_PER_USER"); maxPerUser != "" {
		val, err := strconv.Atoi(maxPerUser)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_WATCHLIST_MAX_PER_USER: %w", err)
		}
		c.Watchlist.MaxPerUser = val
	}

	// Relay configuration
	if enabled := os.Getenv("LAUNCHPAD_RELAY_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_RELAY_ENABLED: %w", err)
		}
		c.Relay.Enabled = val
	}
	if brokers := os.Getenv("LAUNCHPAD_RELAY_BROKERS"); brokers != "" {
		parts := strings.Split(brokers, ",")
		c.Relay.Brokers = make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				c.Relay.Brokers = append(c.Relay.Brokers, trimmed)
			}
		}
	}
	if topic := os.Getenv("LAUNCHPAD_RELAY_TOPIC"); topic != "" {
		c.Relay.Topic = topic
	}

	// Notify configuration
	if enabled := os.Getenv("LAUNCHPAD_NOTIFY_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_NOTIFY_ENABLED: %w", err)
		}
		c.Notify.Enabled = val
	}
	if webhookURL := os.Getenv("LAUNCHPAD_NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		c.Notify.WebhookURL = webhookURL
	}
	if secret := os.Getenv("LAUNCHPAD_NOTIFY_SECRET"); secret != "" {
		c.Notify.Secret = secret
	}
	if kinds := os.Getenv("LAUNCHPAD_NOTIFY_KINDS"); kinds != "" {
		parts := strings.Split(kinds, ",")
		c.Notify.Kinds = make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				c.Notify.Kinds = append(c.Notify.Kinds, trimmed)
			}
		}
	}

	// API configuration
	if enabled := os.Getenv("LAUNCHPAD_API_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_API_ENABLED: %w", err)
		}
		c.API.Enabled = val
	}
	if host := os.Getenv("LAUNCHPAD_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("LAUNCHPAD_API_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_API_PORT: %w", err)
		}
		c.API.Port = val
	}
	if enableGraphQL := os.Getenv("LAUNCHPAD_API_GRAPHQL"); enableGraphQL != "" {
		val, err := strconv.ParseBool(enableGraphQL)
		if err != nil {
			return fmt.Errorf("invalid LAUNCHPAD_API_GRAPHQL: %w", err)
		}
		c.API.EnableGraphQL = val
	}
	if origins := os.Getenv("LAUNCHPAD_API_CORS_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		c.API.AllowedOrigins = make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				c.API.AllowedOrigins = append(c.API.AllowedOrigins, trimmed)
			}
		}
	}

	// Log configuration
	if level := os.Getenv("LAUNCHPAD_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LAUNCHPAD_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate chain configuration
	if c.Chain.Endpoint == "" {
		return fmt.Errorf("chain endpoint is required")
	}
	if c.Chain.Contract != "" {
		addr := c.Chain.Contract
		if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
			return fmt.Errorf("invalid contract address %q", addr)
		}
	}
	if c.Chain.Timeout <= 0 {
		return fmt.Errorf("chain timeout must be positive")
	}

	// Validate database configuration
	validBackends := map[string]bool{
		"pebble": true,
		"memory": true,
	}
	if !validBackends[c.Database.Backend] {
		return fmt.Errorf("invalid database backend %q, must be one of: pebble, memory", c.Database.Backend)
	}
	if c.Database.Backend == "pebble" && c.Database.Path == "" {
		return fmt.Errorf("database path is required for the pebble backend")
	}

	// Validate cache configuration
	validCacheBackends := map[string]bool{
		"memory": true,
		"redis":  true,
	}
	if !validCacheBackends[c.Cache.Backend] {
		return fmt.Errorf("invalid cache backend %q, must be one of: memory, redis", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("redis cache enabled but no address configured")
	}

	// Validate ingest configuration
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be positive")
	}
	if c.Ingest.FlushInterval <= 0 {
		return fmt.Errorf("ingest flush interval must be positive")
	}
	if c.Ingest.MaxBatchRetries <= 0 {
		return fmt.Errorf("ingest max batch retries must be positive")
	}
	if c.Ingest.QueueCap <= 0 {
		return fmt.Errorf("ingest queue cap must be positive")
	}

	// Validate hub configuration
	if c.Hub.MaxConnections <= 0 {
		return fmt.Errorf("hub max connections must be positive")
	}
	if c.Hub.PingInterval <= 0 {
		return fmt.Errorf("hub ping interval must be positive")
	}

	// Validate watchlist configuration if enabled
	if c.Watchlist.Enabled {
		if c.Watchlist.MaxPerUser <= 0 {
			return fmt.Errorf("watchlist max per user must be positive")
		}
		if c.Watchlist.ExpectedTokens <= 0 {
			return fmt.Errorf("watchlist expected tokens must be positive")
		}
		if c.Watchlist.FalsePositiveRate <= 0 || c.Watchlist.FalsePositiveRate >= 1 {
			return fmt.Errorf("watchlist false positive rate must be between 0 and 1")
		}
	}

	// Validate relay configuration if enabled
	if c.Relay.Enabled {
		if len(c.Relay.Brokers) == 0 {
			return fmt.Errorf("relay enabled but no brokers configured")
		}
		if c.Relay.Topic == "" {
			return fmt.Errorf("relay topic is required when relay is enabled")
		}
		validCompression := map[string]bool{
			"":       true,
			"gzip":   true,
			"snappy": true,
			"lz4":    true,
			"zstd":   true,
		}
		if !validCompression[c.Relay.Compression] {
			return fmt.Errorf("invalid relay compression %q, must be one of: gzip, snappy, lz4, zstd", c.Relay.Compression)
		}
	}

	// Validate notify configuration if enabled
	if c.Notify.Enabled {
		if c.Notify.WebhookURL == "" {
			return fmt.Errorf("notify webhook url is required when notify is enabled")
		}
		parsed, err := url.Parse(c.Notify.WebhookURL)
		if err != nil {
			return fmt.Errorf("invalid notify webhook url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("notify webhook url must use http or https scheme")
		}
		if c.Notify.MaxAttempts <= 0 {
			return fmt.Errorf("notify max attempts must be positive")
		}
	}

	// Validate API configuration
	if c.API.Host == "" {
		return fmt.Errorf("api host cannot be empty")
	}
	if c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort {
		return fmt.Errorf("api port must be between %d and %d", constants.MinPort, constants.MaxPort)
	}

	// Validate log configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	return nil
}

// Load is a convenience method that loads configuration in the following order:
// 1. Set defaults
// 2. Load from file (if provided)
// 3. Load from environment variables (override file)
// 4. Validate
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

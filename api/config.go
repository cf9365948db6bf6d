package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
)

// Config holds API server configuration.
type Config struct {
	// Host is the server host (default: 0.0.0.0)
	Host string

	// Port is the server port (default: 8080)
	Port int

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes is the maximum size of request headers
	MaxHeaderBytes int

	// EnableCORS enables CORS middleware
	EnableCORS bool

	// AllowedOrigins is a list of allowed CORS origins
	AllowedOrigins []string

	// EnableGraphQL enables the GraphQL query API and playground
	EnableGraphQL bool

	// GraphQLPath is the GraphQL endpoint path (default: /graphql)
	GraphQLPath string

	// GraphQLPlaygroundPath is the GraphQL playground path (default: /playground)
	GraphQLPlaygroundPath string

	// EnableJSONRPC enables the JSON-RPC query API
	EnableJSONRPC bool

	// JSONRPCPath is the JSON-RPC endpoint path (default: /rpc)
	JSONRPCPath string

	// WebSocketPath is the realtime feed endpoint path (default: /ws)
	WebSocketPath string

	// ShutdownTimeout is the graceful shutdown timeout
	ShutdownTimeout time.Duration

	// EnableRateLimit enables rate limiting middleware
	EnableRateLimit bool

	// RateLimitPerSecond is the number of requests allowed per second per IP
	RateLimitPerSecond float64

	// RateLimitBurst is the maximum burst size
	RateLimitBurst int
}

// DefaultConfig returns a default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:                  constants.DefaultAPIHost,
		Port:                  constants.DefaultAPIPort,
		ReadTimeout:           constants.DefaultReadTimeout,
		WriteTimeout:          constants.DefaultWriteTimeout,
		IdleTimeout:           constants.DefaultIdleTimeout,
		MaxHeaderBytes:        constants.DefaultMaxHeaderBytes,
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
		EnableGraphQL:         true,
		GraphQLPath:           constants.APIPathGraphQL,
		GraphQLPlaygroundPath: constants.APIPathPlayground,
		EnableJSONRPC:         true,
		JSONRPCPath:           constants.APIPathJSONRPC,
		WebSocketPath:         constants.APIPathWebSocket,
		ShutdownTimeout:       constants.DefaultShutdownTimeout,
		EnableRateLimit:       false,
		RateLimitPerSecond:    constants.DefaultRateLimit,
		RateLimitBurst:        constants.DefaultRateBurst,
	}
}

// FromAppConfig builds a server Config from the application-level API
// section, filling paths and header limits with defaults.
func FromAppConfig(app config.APIConfig) *Config {
	cfg := DefaultConfig()
	cfg.Host = app.Host
	cfg.Port = app.Port
	cfg.ReadTimeout = app.ReadTimeout
	cfg.WriteTimeout = app.WriteTimeout
	cfg.IdleTimeout = app.IdleTimeout
	cfg.ShutdownTimeout = app.ShutdownTimeout
	cfg.EnableGraphQL = app.EnableGraphQL
	cfg.EnableCORS = app.EnableCORS
	if len(app.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = app.AllowedOrigins
	}
	cfg.EnableRateLimit = app.EnableRateLimit
	if app.RateLimit > 0 {
		cfg.RateLimitPerSecond = app.RateLimit
	}
	if app.RateBurst > 0 {
		cfg.RateLimitBurst = app.RateBurst
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < constants.MinPort || c.Port > constants.MaxPort {
		return fmt.Errorf("port must be between %d and %d", constants.MinPort, constants.MaxPort)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("max header bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.WebSocketPath == "" {
		return errors.New("websocket path cannot be empty")
	}
	if c.EnableGraphQL && (c.GraphQLPath == "" || c.GraphQLPlaygroundPath == "") {
		return errors.New("graphql paths cannot be empty when graphql is enabled")
	}
	if c.EnableJSONRPC && c.JSONRPCPath == "" {
		return errors.New("jsonrpc path cannot be empty when jsonrpc is enabled")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Package storage persists launchpad state: tokens, trades, daily
// analytics, and market-wide counters. All write operations are idempotent
// under redelivery; the ingestion pipeline may apply the same chain event
// more than once and observe identical state afterwards.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey is returned when a key format is invalid
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidData is returned when data cannot be decoded
	ErrInvalidData = errors.New("invalid data")

	// ErrClosed is returned when operating on a closed storage
	ErrClosed = errors.New("storage closed")

	// ErrReadOnly is returned when attempting to write to a read-only storage
	ErrReadOnly = errors.New("storage is read-only")
)

// Reader provides read-only access to launchpad state
// Following Interface Segregation Principle - clients depend only on read methods
type Reader interface {
	// GetToken returns a token by address
	// Returns ErrNotFound if the token does not exist
	GetToken(ctx context.Context, addr common.Address) (*TokenRecord, error)

	// ListTokens returns tokens ordered by address with pagination
	ListTokens(ctx context.Context, limit, offset int) ([]*TokenRecord, error)

	// GetTrade returns a trade by transaction hash
	// Returns ErrNotFound if the trade does not exist
	GetTrade(ctx context.Context, hash common.Hash) (*TradeRecord, error)

	// GetTradesByToken returns a token's trades, newest first, with pagination
	GetTradesByToken(ctx context.Context, token common.Address, limit, offset int) ([]*TradeRecord, error)

	// HasTrade checks if a trade exists for the transaction hash
	HasTrade(ctx context.Context, hash common.Hash) (bool, error)

	// GetDailyAnalytics returns a token's analytics for a date ("2006-01-02")
	// Returns ErrNotFound if no analytics exist for that date
	GetDailyAnalytics(ctx context.Context, token common.Address, date string) (*AnalyticsRecord, error)

	// MarketStats returns the market-wide counters
	MarketStats(ctx context.Context) (*MarketStatsRecord, error)
}

// Writer provides idempotent write access to launchpad state
// All operations are safe to call twice with identical arguments
type Writer interface {
	// UpsertToken creates the token if absent, then applies the patch.
	// Delta fields merge into cumulative counters; absolute fields
	// overwrite. Returns the resulting record.
	UpsertToken(ctx context.Context, addr common.Address, patch *TokenPatch) (*TokenRecord, error)

	// InsertTradeIfAbsent stores the trade keyed by its transaction hash.
	// Returns true if the trade was inserted, false if one already existed
	// (in which case stored state is unchanged).
	InsertTradeIfAbsent(ctx context.Context, trade *TradeRecord) (bool, error)

	// AttachTradeFee sets the fee on an existing trade if it has none yet.
	// Returns true if the fee was attached, false if the trade already
	// carried a fee or does not exist.
	AttachTradeFee(ctx context.Context, hash common.Hash, fee *big.Int) (bool, error)

	// SetGraduated marks a token as graduated. The flag is one-way: once
	// set, later calls keep the original graduation time.
	SetGraduated(ctx context.Context, addr common.Address, at time.Time) error

	// UpsertDailyAnalytics merges the patch into a token's analytics for a
	// date, creating the record if absent. Returns the resulting record.
	UpsertDailyAnalytics(ctx context.Context, token common.Address, date string, patch *AnalyticsPatch) (*AnalyticsRecord, error)
}

// Storage combines Reader and Writer with lifecycle management
type Storage interface {
	Reader
	Writer

	// Close releases all resources
	Close() error
}

// Config holds storage configuration
type Config struct {
	// Path is the directory for the database files
	Path string

	// CacheSize is the block cache size in MB
	CacheSize int

	// MaxOpenFiles limits open file descriptors
	MaxOpenFiles int

	// WriteBuffer is the memtable size in MB
	WriteBuffer int

	// ReadOnly opens the database in read-only mode
	ReadOnly bool
}

// DefaultConfig returns a storage configuration with sensible defaults
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		CacheSize:    128,
		MaxOpenFiles: 1000,
		WriteBuffer:  64,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.MaxOpenFiles <= 0 {
		return fmt.Errorf("max open files must be positive")
	}
	if c.WriteBuffer <= 0 {
		return fmt.Errorf("write buffer must be positive")
	}
	return nil
}

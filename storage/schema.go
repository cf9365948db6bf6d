package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Key prefixes for different data types
const (
	prefixTokens      = "/data/tokens/"
	prefixTrades      = "/data/trades/"
	prefixAnalytics   = "/data/analytics/"
	prefixWatches     = "/data/watches/"
	prefixTokenTrades = "/index/token-trades/"
)

// Metadata keys
const (
	keyMarketStats = "/meta/market/stats"
)

// MarketStatsKey returns the key for the market-wide counters
func MarketStatsKey() []byte {
	return []byte(keyMarketStats)
}

// TokenKey returns the key for storing a token record
// Format: /data/tokens/{address}
func TokenKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixTokens, addr.Hex()))
}

// TokenKeyPrefix returns the prefix for iterating all tokens
func TokenKeyPrefix() []byte {
	return []byte(prefixTokens)
}

// TradeKey returns the key for storing a trade record
// Format: /data/trades/{txhash}
func TradeKey(hash common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixTrades, hash.Hex()))
}

// TokenTradeKey returns the key for the token-trade index
// Format: /index/token-trades/{address}/{seq}
// Uses zero-padded fixed-width format for proper lexicographic sorting
func TokenTradeKey(addr common.Address, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixTokenTrades, addr.Hex(), seq))
}

// TokenTradeKeyPrefix returns the key prefix for one token's trade index
// Used for iterating all trades of a token
func TokenTradeKeyPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixTokenTrades, addr.Hex()))
}

// TokenTradeIndexPrefix returns the prefix covering every token's trade index
func TokenTradeIndexPrefix() []byte {
	return []byte(prefixTokenTrades)
}

// AnalyticsKey returns the key for a token's daily analytics
// Format: /data/analytics/{address}/{date}
func AnalyticsKey(addr common.Address, date string) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefixAnalytics, addr.Hex(), date))
}

// WatchKey returns the key for one user's watch on one token
// Format: /data/watches/{userID}/{address}
func WatchKey(userID string, addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefixWatches, userID, addr.Hex()))
}

// WatchKeyPrefix returns the prefix covering every watch entry
func WatchKeyPrefix() []byte {
	return []byte(prefixWatches)
}

// AnalyticsKeyPrefix returns the prefix for one token's analytics records
func AnalyticsKeyPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixAnalytics, addr.Hex()))
}

// ParseTokenTradeKey parses a token-trade index key into address and sequence
func ParseTokenTradeKey(key []byte) (common.Address, uint64, error) {
	keyStr := string(key)
	if !strings.HasPrefix(keyStr, prefixTokenTrades) {
		return common.Address{}, 0, fmt.Errorf("invalid token-trade key prefix: %s", keyStr)
	}

	parts := strings.TrimPrefix(keyStr, prefixTokenTrades)
	segments := strings.Split(parts, "/")
	if len(segments) != 2 {
		return common.Address{}, 0, fmt.Errorf("invalid token-trade key format: %s", keyStr)
	}

	if !common.IsHexAddress(segments[0]) {
		return common.Address{}, 0, fmt.Errorf("invalid token-trade key address: %s", segments[0])
	}

	seq, err := strconv.ParseUint(segments[1], 10, 64)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("invalid token-trade key sequence: %w", err)
	}

	return common.HexToAddress(segments[0]), seq, nil
}

// PrefixUpperBound returns the smallest key greater than every key carrying
// the given prefix. Returns nil when no such bound exists.
func PrefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

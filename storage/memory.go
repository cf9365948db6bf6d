package storage

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStorage implements the Storage interface in process memory.
// Intended for tests and single-node development runs; state is lost on
// restart. All returned records are deep copies, so callers may mutate
// them freely.
type MemoryStorage struct {
	mu     sync.RWMutex
	closed bool

	tokens      map[common.Address]*TokenRecord
	trades      map[common.Hash]*TradeRecord
	tokenTrades map[common.Address][]common.Hash
	analytics   map[common.Address]map[string]*AnalyticsRecord
	watches     map[string]map[common.Address]*WatchRecord
	stats       *MarketStatsRecord
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tokens:      make(map[common.Address]*TokenRecord),
		trades:      make(map[common.Hash]*TradeRecord),
		tokenTrades: make(map[common.Address][]common.Hash),
		analytics:   make(map[common.Address]map[string]*AnalyticsRecord),
		watches:     make(map[string]map[common.Address]*WatchRecord),
		stats:       &MarketStatsRecord{TotalVolume: new(big.Int)},
	}
}

// Close marks the storage closed; further operations return ErrClosed
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// GetToken returns a token by address
func (s *MemoryStorage) GetToken(ctx context.Context, addr common.Address) (*TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	token, ok := s.tokens[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return token.Clone(), nil
}

// ListTokens returns tokens ordered by address with pagination
func (s *MemoryStorage) ListTokens(ctx context.Context, limit, offset int) ([]*TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	addrs := make([]common.Address, 0, len(s.tokens))
	for addr := range s.tokens {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Hex() < addrs[j].Hex()
	})

	var tokens []*TokenRecord
	for i, addr := range addrs {
		if i < offset {
			continue
		}
		if len(tokens) >= limit {
			break
		}
		tokens = append(tokens, s.tokens[addr].Clone())
	}

	return tokens, nil
}

// GetTrade returns a trade by transaction hash
func (s *MemoryStorage) GetTrade(ctx context.Context, hash common.Hash) (*TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	trade, ok := s.trades[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return trade.Clone(), nil
}

// GetTradesByToken returns a token's trades, newest first, with pagination
func (s *MemoryStorage) GetTradesByToken(ctx context.Context, token common.Address, limit, offset int) ([]*TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	hashes := s.tokenTrades[token]

	var trades []*TradeRecord
	count := 0

	// Hashes append in insertion order, so newest first means walking backwards
	for i := len(hashes) - 1; i >= 0; i-- {
		if count < offset {
			count++
			continue
		}
		if len(trades) >= limit {
			break
		}
		if trade, ok := s.trades[hashes[i]]; ok {
			trades = append(trades, trade.Clone())
			count++
		}
	}

	return trades, nil
}

// HasTrade checks if a trade exists for the transaction hash
func (s *MemoryStorage) HasTrade(ctx context.Context, hash common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	_, ok := s.trades[hash]
	return ok, nil
}

// GetDailyAnalytics returns a token's analytics for a date
func (s *MemoryStorage) GetDailyAnalytics(ctx context.Context, token common.Address, date string) (*AnalyticsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	byDate, ok := s.analytics[token]
	if !ok {
		return nil, ErrNotFound
	}
	analytics, ok := byDate[date]
	if !ok {
		return nil, ErrNotFound
	}
	return analytics.Clone(), nil
}

// MarketStats returns the market-wide counters
func (s *MemoryStorage) MarketStats(ctx context.Context) (*MarketStatsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	return s.stats.Clone(), nil
}

// UpsertToken creates the token if absent, then applies the patch
func (s *MemoryStorage) UpsertToken(ctx context.Context, addr common.Address, patch *TokenPatch) (*TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	token, ok := s.tokens[addr]
	if !ok {
		token = newTokenShell(addr)
		s.tokens[addr] = token
		s.stats.TokenCount++
		s.stats.UpdatedAt = time.Now().UTC()
	}

	applyTokenPatch(token, patch)
	token.UpdatedAt = time.Now().UTC()

	return token.Clone(), nil
}

// InsertTradeIfAbsent stores the trade keyed by its transaction hash
func (s *MemoryStorage) InsertTradeIfAbsent(ctx context.Context, trade *TradeRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, exists := s.trades[trade.Hash]; exists {
		return false, nil
	}

	stored := trade.Clone()
	s.trades[trade.Hash] = stored
	s.tokenTrades[trade.Token] = append(s.tokenTrades[trade.Token], trade.Hash)

	s.stats.TradeCount++
	if stored.BNBAmount != nil {
		s.stats.TotalVolume.Add(s.stats.TotalVolume, stored.BNBAmount)
	}
	s.stats.UpdatedAt = time.Now().UTC()

	return true, nil
}

// AttachTradeFee sets the fee on an existing trade if it has none yet
func (s *MemoryStorage) AttachTradeFee(ctx context.Context, hash common.Hash, fee *big.Int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	trade, ok := s.trades[hash]
	if !ok {
		return false, nil
	}
	if trade.Fee != nil {
		return false, nil
	}

	trade.Fee = cloneBig(fee)
	if trade.Fee == nil {
		trade.Fee = new(big.Int)
	}

	return true, nil
}

// SetGraduated marks a token as graduated; repeated calls keep the
// original graduation time
func (s *MemoryStorage) SetGraduated(ctx context.Context, addr common.Address, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	token, ok := s.tokens[addr]
	if !ok {
		token = newTokenShell(addr)
		s.tokens[addr] = token
		s.stats.TokenCount++
	}

	if token.Graduated {
		return nil
	}

	token.Graduated = true
	token.GraduatedAt = at
	token.UpdatedAt = time.Now().UTC()

	s.stats.GraduatedCount++
	s.stats.UpdatedAt = time.Now().UTC()

	return nil
}

// UpsertDailyAnalytics merges the patch into a token's analytics for a date
func (s *MemoryStorage) UpsertDailyAnalytics(ctx context.Context, token common.Address, date string, patch *AnalyticsPatch) (*AnalyticsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	byDate, ok := s.analytics[token]
	if !ok {
		byDate = make(map[string]*AnalyticsRecord)
		s.analytics[token] = byDate
	}

	analytics, ok := byDate[date]
	if !ok {
		analytics = newAnalyticsShell(token, date)
		byDate[date] = analytics
	}

	applyAnalyticsPatch(analytics, patch)
	analytics.UpdatedAt = time.Now().UTC()

	return analytics.Clone(), nil
}

// PutWatch stores one user's watch on a token, overwriting any existing entry
func (s *MemoryStorage) PutWatch(ctx context.Context, rec *WatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	byToken, ok := s.watches[rec.UserID]
	if !ok {
		byToken = make(map[common.Address]*WatchRecord)
		s.watches[rec.UserID] = byToken
	}
	byToken[rec.Token] = rec.Clone()
	return nil
}

// DeleteWatch removes one user's watch on a token; absent entries are a no-op
func (s *MemoryStorage) DeleteWatch(ctx context.Context, userID string, token common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	byToken, ok := s.watches[userID]
	if !ok {
		return nil
	}
	delete(byToken, token)
	if len(byToken) == 0 {
		delete(s.watches, userID)
	}
	return nil
}

// ListWatches returns every stored watch entry across all users
func (s *MemoryStorage) ListWatches(ctx context.Context) ([]*WatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var watches []*WatchRecord
	for _, byToken := range s.watches {
		for _, rec := range byToken {
			watches = append(watches, rec.Clone())
		}
	}
	return watches, nil
}

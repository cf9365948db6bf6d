package storage

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// PebbleStorage implements the Storage interface using PebbleDB
type PebbleStorage struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool

	// upsertMu serializes read-modify-write cycles so concurrent writers
	// cannot interleave between load and store. Reads do not take it;
	// pebble point reads are internally consistent.
	upsertMu sync.Mutex

	// Trade sequence counters
	// Maps token -> next sequence number, guarded by upsertMu
	tradeSeq map[common.Address]uint64
}

// NewPebbleStorage creates a new PebbleDB storage
func NewPebbleStorage(cfg *Config) (*PebbleStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.CacheSize) << 20), // Convert MB to bytes
		MaxOpenFiles: cfg.MaxOpenFiles,
		MemTableSize: uint64(cfg.WriteBuffer) << 20,
	}
	if cfg.ReadOnly {
		opts.ReadOnly = true
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &PebbleStorage{
		db:       db,
		config:   cfg,
		logger:   zap.NewNop(),
		tradeSeq: make(map[common.Address]uint64),
	}

	if err := s.loadTradeSequences(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load trade sequences: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for the storage
func (s *PebbleStorage) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// ensureNotClosed checks if storage is closed
func (s *PebbleStorage) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// ensureNotReadOnly checks if storage is read-only
func (s *PebbleStorage) ensureNotReadOnly() error {
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close closes the storage and releases resources
func (s *PebbleStorage) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// loadTradeSequences rebuilds per-token sequence counters from the trade
// index. Keys iterate in ascending order, so the last entry per token wins.
func (s *PebbleStorage) loadTradeSequences() error {
	prefix := TokenTradeIndexPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		addr, seq, err := ParseTokenTradeKey(iter.Key())
		if err != nil {
			return fmt.Errorf("corrupt trade index key: %w", err)
		}
		s.tradeSeq[addr] = seq + 1
	}

	return iter.Error()
}

// GetToken returns a token by address
func (s *PebbleStorage) GetToken(ctx context.Context, addr common.Address) (*TokenRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(TokenKey(addr))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	defer closer.Close()

	token, err := decodeTokenRecord(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return token, nil
}

// ListTokens returns tokens ordered by address key with pagination
func (s *PebbleStorage) ListTokens(ctx context.Context, limit, offset int) ([]*TokenRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	prefix := TokenKeyPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var tokens []*TokenRecord
	count := 0

	for iter.First(); iter.Valid(); iter.Next() {
		if count < offset {
			count++
			continue
		}

		if len(tokens) >= limit {
			break
		}

		token, err := decodeTokenRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
		tokens = append(tokens, token)
		count++
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return tokens, nil
}

// GetTrade returns a trade by transaction hash
func (s *PebbleStorage) GetTrade(ctx context.Context, hash common.Hash) (*TradeRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(TradeKey(hash))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	defer closer.Close()

	trade, err := decodeTradeRecord(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trade: %w", err)
	}

	return trade, nil
}

// GetTradesByToken returns a token's trades, newest first, with pagination
func (s *PebbleStorage) GetTradesByToken(ctx context.Context, token common.Address, limit, offset int) ([]*TradeRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	prefix := TokenTradeKeyPrefix(token)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var trades []*TradeRecord
	count := 0

	// Sequence keys sort ascending, so newest first means walking backwards
	for iter.Last(); iter.Valid(); iter.Prev() {
		if count < offset {
			count++
			continue
		}

		if len(trades) >= limit {
			break
		}

		var hash common.Hash
		copy(hash[:], iter.Value())

		trade, err := s.GetTrade(ctx, hash)
		if err != nil {
			if err == ErrNotFound {
				s.logger.Warn("dangling trade index entry",
					zap.String("token", token.Hex()),
					zap.String("hash", hash.Hex()))
				continue
			}
			return nil, err
		}

		trades = append(trades, trade)
		count++
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return trades, nil
}

// HasTrade checks if a trade exists for the transaction hash
func (s *PebbleStorage) HasTrade(ctx context.Context, hash common.Hash) (bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return false, err
	}

	_, closer, err := s.db.Get(TradeKey(hash))
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// GetDailyAnalytics returns a token's analytics for a date
func (s *PebbleStorage) GetDailyAnalytics(ctx context.Context, token common.Address, date string) (*AnalyticsRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(AnalyticsKey(token, date))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	defer closer.Close()

	analytics, err := decodeAnalyticsRecord(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analytics: %w", err)
	}

	return analytics, nil
}

// MarketStats returns the market-wide counters. An empty database yields
// a zeroed record rather than ErrNotFound.
func (s *PebbleStorage) MarketStats(ctx context.Context) (*MarketStatsRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	return s.marketStats()
}

func (s *PebbleStorage) marketStats() (*MarketStatsRecord, error) {
	value, closer, err := s.db.Get(MarketStatsKey())
	if err != nil {
		if err == pebble.ErrNotFound {
			return &MarketStatsRecord{TotalVolume: new(big.Int)}, nil
		}
		return nil, fmt.Errorf("failed to get market stats: %w", err)
	}
	defer closer.Close()

	stats, err := decodeMarketStats(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode market stats: %w", err)
	}

	return stats, nil
}

// UpsertToken creates the token if absent, then applies the patch
func (s *PebbleStorage) UpsertToken(ctx context.Context, addr common.Address, patch *TokenPatch) (*TokenRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return nil, err
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	token, err := s.GetToken(ctx, addr)
	created := false
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		token = newTokenShell(addr)
		created = true
	}

	applyTokenPatch(token, patch)
	token.UpdatedAt = time.Now().UTC()

	encoded, err := encodeTokenRecord(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(TokenKey(addr), encoded, nil); err != nil {
		return nil, fmt.Errorf("failed to set token: %w", err)
	}

	if created {
		if err := s.bumpMarketStats(batch, func(m *MarketStatsRecord) {
			m.TokenCount++
		}); err != nil {
			return nil, err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to commit token upsert: %w", err)
	}

	return token, nil
}

// InsertTradeIfAbsent stores the trade keyed by its transaction hash.
// A trade already stored under the same hash leaves all state untouched.
func (s *PebbleStorage) InsertTradeIfAbsent(ctx context.Context, trade *TradeRecord) (bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return false, err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return false, err
	}

	if trade == nil {
		return false, fmt.Errorf("trade cannot be nil")
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	exists, err := s.HasTrade(ctx, trade.Hash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	encoded, err := encodeTradeRecord(trade)
	if err != nil {
		return false, fmt.Errorf("failed to encode trade: %w", err)
	}

	seq := s.tradeSeq[trade.Token]

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(TradeKey(trade.Hash), encoded, nil); err != nil {
		return false, fmt.Errorf("failed to set trade: %w", err)
	}
	if err := batch.Set(TokenTradeKey(trade.Token, seq), trade.Hash[:], nil); err != nil {
		return false, fmt.Errorf("failed to set trade index: %w", err)
	}

	if err := s.bumpMarketStats(batch, func(m *MarketStatsRecord) {
		m.TradeCount++
		if trade.BNBAmount != nil {
			m.TotalVolume.Add(m.TotalVolume, trade.BNBAmount)
		}
	}); err != nil {
		return false, err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to commit trade insert: %w", err)
	}

	s.tradeSeq[trade.Token] = seq + 1
	return true, nil
}

// AttachTradeFee sets the fee on an existing trade if it has none yet
func (s *PebbleStorage) AttachTradeFee(ctx context.Context, hash common.Hash, fee *big.Int) (bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return false, err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return false, err
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	trade, err := s.GetTrade(ctx, hash)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}

	if trade.Fee != nil {
		return false, nil
	}

	trade.Fee = cloneBig(fee)
	if trade.Fee == nil {
		trade.Fee = new(big.Int)
	}

	encoded, err := encodeTradeRecord(trade)
	if err != nil {
		return false, fmt.Errorf("failed to encode trade: %w", err)
	}

	if err := s.db.Set(TradeKey(hash), encoded, pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to set trade: %w", err)
	}

	return true, nil
}

// SetGraduated marks a token as graduated. Repeated calls keep the
// original graduation time.
func (s *PebbleStorage) SetGraduated(ctx context.Context, addr common.Address, at time.Time) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	token, err := s.GetToken(ctx, addr)
	created := false
	if err != nil {
		if err != ErrNotFound {
			return err
		}
		token = newTokenShell(addr)
		created = true
	}

	if token.Graduated {
		return nil
	}

	token.Graduated = true
	token.GraduatedAt = at
	token.UpdatedAt = time.Now().UTC()

	encoded, err := encodeTokenRecord(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(TokenKey(addr), encoded, nil); err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}

	if err := s.bumpMarketStats(batch, func(m *MarketStatsRecord) {
		m.GraduatedCount++
		if created {
			m.TokenCount++
		}
	}); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit graduation: %w", err)
	}

	return nil
}

// UpsertDailyAnalytics merges the patch into a token's analytics for a date
func (s *PebbleStorage) UpsertDailyAnalytics(ctx context.Context, token common.Address, date string, patch *AnalyticsPatch) (*AnalyticsRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return nil, err
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	analytics, err := s.GetDailyAnalytics(ctx, token, date)
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		analytics = newAnalyticsShell(token, date)
	}

	applyAnalyticsPatch(analytics, patch)
	analytics.UpdatedAt = time.Now().UTC()

	encoded, err := encodeAnalyticsRecord(analytics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analytics: %w", err)
	}

	if err := s.db.Set(AnalyticsKey(token, date), encoded, pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to set analytics: %w", err)
	}

	return analytics, nil
}

// PutWatch stores one user's watch on a token, overwriting any existing entry
func (s *PebbleStorage) PutWatch(ctx context.Context, rec *WatchRecord) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	encoded, err := encodeWatchRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to encode watch: %w", err)
	}
	if err := s.db.Set(WatchKey(rec.UserID, rec.Token), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set watch: %w", err)
	}
	return nil
}

// DeleteWatch removes one user's watch on a token; absent entries are a no-op
func (s *PebbleStorage) DeleteWatch(ctx context.Context, userID string, token common.Address) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	if err := s.db.Delete(WatchKey(userID, token), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete watch: %w", err)
	}
	return nil
}

// ListWatches returns every stored watch entry across all users
func (s *PebbleStorage) ListWatches(ctx context.Context) ([]*WatchRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	prefix := WatchKeyPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var watches []*WatchRecord
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeWatchRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode watch: %w", err)
		}
		watches = append(watches, rec)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return watches, nil
}

// bumpMarketStats loads the market counters, mutates them, and adds the
// updated record to the batch. Must be called with upsertMu held so the
// counters commit atomically with the write that changed them.
func (s *PebbleStorage) bumpMarketStats(batch *pebble.Batch, mutate func(*MarketStatsRecord)) error {
	stats, err := s.marketStats()
	if err != nil {
		return err
	}

	mutate(stats)
	stats.UpdatedAt = time.Now().UTC()

	encoded, err := encodeMarketStats(stats)
	if err != nil {
		return fmt.Errorf("failed to encode market stats: %w", err)
	}

	if err := batch.Set(MarketStatsKey(), encoded, nil); err != nil {
		return fmt.Errorf("failed to set market stats: %w", err)
	}

	return nil
}

// newTokenShell returns an empty token record for addr
func newTokenShell(addr common.Address) *TokenRecord {
	return &TokenRecord{
		Address:     addr,
		SoldSupply:  new(big.Int),
		TotalRaised: new(big.Int),
		LastPrice:   new(big.Int),
	}
}

// newAnalyticsShell returns an empty analytics record for token and date
func newAnalyticsShell(token common.Address, date string) *AnalyticsRecord {
	return &AnalyticsRecord{
		Token:      token,
		Date:       date,
		BuyVolume:  new(big.Int),
		SellVolume: new(big.Int),
		Fees:       new(big.Int),
	}
}

// applyTokenPatch merges a patch into a token record. Cumulative counters
// floor at zero when a negative delta would underflow them.
func applyTokenPatch(token *TokenRecord, patch *TokenPatch) {
	if patch == nil {
		return
	}

	if patch.Creator != nil {
		token.Creator = *patch.Creator
	}
	if patch.Name != nil {
		token.Name = *patch.Name
	}
	if patch.Symbol != nil {
		token.Symbol = *patch.Symbol
	}
	if patch.CreatedAtBlock != nil {
		token.CreatedAtBlock = *patch.CreatedAtBlock
	}
	if patch.CreatedAt != nil {
		token.CreatedAt = *patch.CreatedAt
	}
	if patch.SoldSupplyDelta != nil {
		token.SoldSupply.Add(token.SoldSupply, patch.SoldSupplyDelta)
		if token.SoldSupply.Sign() < 0 {
			token.SoldSupply.SetUint64(0)
		}
	}
	if patch.RaisedDelta != nil {
		token.TotalRaised.Add(token.TotalRaised, patch.RaisedDelta)
		if token.TotalRaised.Sign() < 0 {
			token.TotalRaised.SetUint64(0)
		}
	}
	if patch.LastPrice != nil {
		token.LastPrice = new(big.Int).Set(patch.LastPrice)
	}
}

// applyAnalyticsPatch merges a patch into an analytics record
func applyAnalyticsPatch(analytics *AnalyticsRecord, patch *AnalyticsPatch) {
	if patch == nil {
		return
	}

	if patch.BuyVolumeDelta != nil {
		analytics.BuyVolume.Add(analytics.BuyVolume, patch.BuyVolumeDelta)
	}
	if patch.SellVolumeDelta != nil {
		analytics.SellVolume.Add(analytics.SellVolume, patch.SellVolumeDelta)
	}
	if patch.FeeDelta != nil {
		analytics.Fees.Add(analytics.Fees, patch.FeeDelta)
	}
	analytics.TradeCount += patch.TradeCountDelta
}

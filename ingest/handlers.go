package ingest

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0xmhha/launchpad-go/cache"
	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/storage"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Store is the slice of the storage layer the pipeline writes through.
// Every method is idempotent under redelivery of the same event.
type Store interface {
	UpsertToken(ctx context.Context, addr common.Address, patch *storage.TokenPatch) (*storage.TokenRecord, error)
	InsertTradeIfAbsent(ctx context.Context, trade *storage.TradeRecord) (bool, error)
	AttachTradeFee(ctx context.Context, hash common.Hash, fee *big.Int) (bool, error)
	SetGraduated(ctx context.Context, addr common.Address, at time.Time) error
	UpsertDailyAnalytics(ctx context.Context, token common.Address, date string, patch *storage.AnalyticsPatch) (*storage.AnalyticsRecord, error)
}

// Invalidator is the slice of the cache the pipeline invalidates after
// entity writes
type Invalidator interface {
	DeletePrefix(ctx context.Context, prefix string) int
}

// Handlers applies chain events to storage and keeps the cache coherent.
// Apply reports whether the event changed stored state so the pipeline
// can suppress announcements for redeliveries.
type Handlers struct {
	store  Store
	cache  Invalidator
	logger *zap.Logger
}

// NewHandlers creates the per-kind event appliers. cache may be nil.
func NewHandlers(store Store, cache Invalidator, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Apply applies one event. It returns true when the event changed stored
// state and false when it collapsed onto records an earlier delivery
// already wrote.
func (h *Handlers) Apply(ctx context.Context, ev events.Event) (bool, error) {
	switch e := ev.(type) {
	case *events.TokenCreated:
		return h.applyTokenCreated(ctx, e)
	case *events.TokenBought:
		return h.applyTokenBought(ctx, e)
	case *events.TokenSold:
		return h.applyTokenSold(ctx, e)
	case *events.TokenGraduated:
		return h.applyTokenGraduated(ctx, e)
	case *events.DetailedTransaction:
		return h.applyDetailedTransaction(ctx, e)
	default:
		return false, fmt.Errorf("unhandled event kind %q", ev.Kind())
	}
}

// applyTokenCreated writes the token row with zero counters and its
// initial analytics day
func (h *Handlers) applyTokenCreated(ctx context.Context, e *events.TokenCreated) (bool, error) {
	patch := &storage.TokenPatch{
		Creator:        &e.Creator,
		Name:           &e.Name,
		Symbol:         &e.Symbol,
		CreatedAtBlock: &e.Number,
		CreatedAt:      &e.Time,
	}
	if _, err := h.store.UpsertToken(ctx, e.Address, patch); err != nil {
		return false, fmt.Errorf("upsert token: %w", err)
	}
	if _, err := h.store.UpsertDailyAnalytics(ctx, e.Address, storage.DayOf(e.Time), &storage.AnalyticsPatch{}); err != nil {
		return false, fmt.Errorf("init analytics: %w", err)
	}
	h.invalidate(ctx, e.Address)
	return true, nil
}

func (h *Handlers) applyTokenBought(ctx context.Context, e *events.TokenBought) (bool, error) {
	return h.recordTrade(ctx, &storage.TradeRecord{
		Hash:        e.Hash,
		Token:       e.Address,
		Trader:      e.Buyer,
		Side:        storage.SideBuy,
		BNBAmount:   e.BNBAmount,
		TokenAmount: e.TokenAmount,
		Price:       storage.TradePrice(e.BNBAmount, e.TokenAmount),
		BlockNumber: e.Number,
		Timestamp:   e.Time,
	})
}

func (h *Handlers) applyTokenSold(ctx context.Context, e *events.TokenSold) (bool, error) {
	return h.recordTrade(ctx, &storage.TradeRecord{
		Hash:        e.Hash,
		Token:       e.Address,
		Trader:      e.Seller,
		Side:        storage.SideSell,
		BNBAmount:   e.BNBAmount,
		TokenAmount: e.TokenAmount,
		Price:       storage.TradePrice(e.BNBAmount, e.TokenAmount),
		BlockNumber: e.Number,
		Timestamp:   e.Time,
	})
}

// applyTokenGraduated mirrors the one-way graduation flag. Storage keeps
// the original graduation time on redelivery.
func (h *Handlers) applyTokenGraduated(ctx context.Context, e *events.TokenGraduated) (bool, error) {
	if err := h.store.SetGraduated(ctx, e.Address, e.Time); err != nil {
		return false, fmt.Errorf("set graduated: %w", err)
	}
	h.invalidate(ctx, e.Address)
	return true, nil
}

// applyDetailedTransaction enriches a trade with its platform fee. When
// the enriched event arrives before the plain trade event it records the
// full trade itself; the plain event then collapses as a redelivery, so
// volume is never counted twice for one transaction hash.
func (h *Handlers) applyDetailedTransaction(ctx context.Context, e *events.DetailedTransaction) (bool, error) {
	side := storage.SideSell
	if e.IsBuy {
		side = storage.SideBuy
	}

	applied, err := h.recordTrade(ctx, &storage.TradeRecord{
		Hash:        e.Hash,
		Token:       e.Address,
		Trader:      e.Trader,
		Side:        side,
		BNBAmount:   e.BNBAmount,
		TokenAmount: e.TokenAmount,
		Price:       storage.TradePrice(e.BNBAmount, e.TokenAmount),
		Fee:         e.Fee,
		BlockNumber: e.Number,
		Timestamp:   e.Time,
	})
	if err != nil || applied {
		return applied, err
	}

	// The plain trade event got here first; attach the fee to it.
	attached, err := h.store.AttachTradeFee(ctx, e.Hash, e.Fee)
	if err != nil {
		return false, fmt.Errorf("attach fee: %w", err)
	}
	if !attached {
		return false, nil
	}

	if _, err := h.store.UpsertDailyAnalytics(ctx, e.Address, storage.DayOf(e.Time), &storage.AnalyticsPatch{FeeDelta: e.Fee}); err != nil {
		return false, fmt.Errorf("apply fee analytics: %w", err)
	}
	h.invalidate(ctx, e.Address)
	return true, nil
}

// recordTrade inserts the trade and applies its curve and analytics
// effects. A trade already stored under the same transaction hash is a
// redelivery: nothing is touched. The insert runs first so a retried
// batch can never apply the deltas twice.
func (h *Handlers) recordTrade(ctx context.Context, trade *storage.TradeRecord) (bool, error) {
	inserted, err := h.store.InsertTradeIfAbsent(ctx, trade)
	if err != nil {
		return false, fmt.Errorf("insert trade: %w", err)
	}
	if !inserted {
		h.logger.Debug("skipping redelivered trade",
			zap.String("tx_hash", trade.Hash.Hex()))
		return false, nil
	}

	patch := &storage.TokenPatch{LastPrice: trade.Price}
	analytics := &storage.AnalyticsPatch{TradeCountDelta: 1}
	if trade.Side == storage.SideBuy {
		patch.SoldSupplyDelta = trade.TokenAmount
		patch.RaisedDelta = trade.BNBAmount
		analytics.BuyVolumeDelta = trade.BNBAmount
	} else {
		patch.SoldSupplyDelta = neg(trade.TokenAmount)
		patch.RaisedDelta = neg(trade.BNBAmount)
		analytics.SellVolumeDelta = trade.BNBAmount
	}
	if trade.Fee != nil {
		analytics.FeeDelta = trade.Fee
	}

	if _, err := h.store.UpsertToken(ctx, trade.Token, patch); err != nil {
		return false, fmt.Errorf("apply curve deltas: %w", err)
	}
	if _, err := h.store.UpsertDailyAnalytics(ctx, trade.Token, storage.DayOf(trade.Timestamp), analytics); err != nil {
		return false, fmt.Errorf("apply analytics: %w", err)
	}
	h.invalidate(ctx, trade.Token)
	return true, nil
}

// invalidate drops every cached payload derived from the token plus the
// market-wide payloads, which change on every applied event
func (h *Handlers) invalidate(ctx context.Context, token common.Address) {
	if h.cache == nil {
		return
	}
	h.cache.DeletePrefix(ctx, cache.TokenPrefix(token))
	h.cache.DeletePrefix(ctx, cache.AnalyticsPrefix(token))
	h.cache.DeletePrefix(ctx, cache.MarketPrefix())
}

func neg(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Neg(x)
}

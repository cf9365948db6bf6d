package websocket

import (
	"math/big"
	"strings"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/storage"
)

// EventPayload is the client-facing JSON shape of a processed event.
// Amounts are decimal wei strings so precision survives JSON numbers.
type EventPayload struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Token      string `json:"token"`
	Block      uint64 `json:"block"`
	TxHash     string `json:"txHash"`
	OccurredAt int64  `json:"occurredAt"`

	Creator     string `json:"creator,omitempty"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Trader      string `json:"trader,omitempty"`
	Side        string `json:"side,omitempty"`
	BNBAmount   string `json:"bnbAmount,omitempty"`
	TokenAmount string `json:"tokenAmount,omitempty"`
	Fee         string `json:"fee,omitempty"`
}

// NewEventPayload maps a processed event onto its wire shape
func NewEventPayload(pr *events.Processed) *EventPayload {
	p := &EventPayload{
		ID:         pr.ID,
		Kind:       string(pr.Kind),
		Token:      lowerHex(pr.Token.Hex()),
		Block:      pr.Event.Block(),
		TxHash:     pr.Event.TxHash().Hex(),
		OccurredAt: unixMS(pr.Event.OccurredAt()),
	}

	switch ev := pr.Event.(type) {
	case *events.TokenCreated:
		p.Creator = lowerHex(ev.Creator.Hex())
		p.Name = ev.Name
		p.Symbol = ev.Symbol
	case *events.TokenBought:
		p.Trader = lowerHex(ev.Buyer.Hex())
		p.Side = storage.SideBuy
		p.BNBAmount = weiString(ev.BNBAmount)
		p.TokenAmount = weiString(ev.TokenAmount)
	case *events.TokenSold:
		p.Trader = lowerHex(ev.Seller.Hex())
		p.Side = storage.SideSell
		p.BNBAmount = weiString(ev.BNBAmount)
		p.TokenAmount = weiString(ev.TokenAmount)
	case *events.DetailedTransaction:
		p.Trader = lowerHex(ev.Trader.Hex())
		if ev.IsBuy {
			p.Side = storage.SideBuy
		} else {
			p.Side = storage.SideSell
		}
		p.BNBAmount = weiString(ev.BNBAmount)
		p.TokenAmount = weiString(ev.TokenAmount)
		p.Fee = weiString(ev.Fee)
	}
	return p
}

// pushFrameType maps a matched subscription channel onto its frame type.
// Both owner-scoped channels push portfolio updates.
func pushFrameType(kind SubKind) string {
	switch kind {
	case SubToken:
		return FrameTokenEvent
	case SubMarket:
		return FrameMarketUpdate
	default:
		return FramePortfolioUpdate
	}
}

// TokenInfoPayload is the reply shape of get_token_info
type TokenInfoPayload struct {
	Address        string `json:"address"`
	Creator        string `json:"creator"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	SoldSupply     string `json:"soldSupply"`
	TotalRaised    string `json:"totalRaised"`
	LastPrice      string `json:"lastPrice"`
	Graduated      bool   `json:"graduated"`
	GraduatedAt    int64  `json:"graduatedAt,omitempty"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// NewTokenInfoPayload maps a token record onto its wire shape
func NewTokenInfoPayload(rec *storage.TokenRecord) *TokenInfoPayload {
	return &TokenInfoPayload{
		Address:        lowerHex(rec.Address.Hex()),
		Creator:        lowerHex(rec.Creator.Hex()),
		Name:           rec.Name,
		Symbol:         rec.Symbol,
		SoldSupply:     weiString(rec.SoldSupply),
		TotalRaised:    weiString(rec.TotalRaised),
		LastPrice:      weiString(rec.LastPrice),
		Graduated:      rec.Graduated,
		GraduatedAt:    unixMS(rec.GraduatedAt),
		CreatedAtBlock: rec.CreatedAtBlock,
		CreatedAt:      unixMS(rec.CreatedAt),
		UpdatedAt:      unixMS(rec.UpdatedAt),
	}
}

// MarketDataPayload is the reply shape of get_market_data
type MarketDataPayload struct {
	TokenCount     uint64 `json:"tokenCount"`
	GraduatedCount uint64 `json:"graduatedCount"`
	TradeCount     uint64 `json:"tradeCount"`
	TotalVolume    string `json:"totalVolume"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// NewMarketDataPayload maps the market stats record onto its wire shape
func NewMarketDataPayload(rec *storage.MarketStatsRecord) *MarketDataPayload {
	return &MarketDataPayload{
		TokenCount:     rec.TokenCount,
		GraduatedCount: rec.GraduatedCount,
		TradeCount:     rec.TradeCount,
		TotalVolume:    weiString(rec.TotalVolume),
		UpdatedAt:      unixMS(rec.UpdatedAt),
	}
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func lowerHex(hex string) string {
	return strings.ToLower(hex)
}

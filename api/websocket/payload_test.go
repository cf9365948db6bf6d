package websocket

import (
	"math/big"
	"testing"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/testutil"
	"github.com/0xmhha/launchpad-go/storage"
)

func TestNewEventPayload_TokenCreated(t *testing.T) {
	created := testutil.NewTokenCreated(regTokenA, regOwner, 1)
	p := NewEventPayload(events.NewProcessed(created))

	if p.Kind != string(events.KindTokenCreated) {
		t.Errorf("Kind = %q, want %q", p.Kind, events.KindTokenCreated)
	}
	if p.Token != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Token = %q, want lowercase address", p.Token)
	}
	if p.Creator != "0xdddddddddddddddddddddddddddddddddddddddd" {
		t.Errorf("Creator = %q, want lowercase address", p.Creator)
	}
	if p.Name == "" || p.Symbol == "" {
		t.Error("Name/Symbol not populated")
	}
	if p.Side != "" || p.BNBAmount != "" {
		t.Error("trade fields populated on a creation event")
	}
	if p.OccurredAt != testutil.TestTime(1).UnixMilli() {
		t.Errorf("OccurredAt = %d, want event time in ms", p.OccurredAt)
	}
}

func TestNewEventPayload_Trades(t *testing.T) {
	buy := testutil.NewTokenBought(regTokenA, regOwner, 1000, 500, 2)
	p := NewEventPayload(events.NewProcessed(buy))
	if p.Side != storage.SideBuy || p.BNBAmount != "1000" || p.TokenAmount != "500" {
		t.Errorf("buy payload = %s/%s/%s, want buy/1000/500", p.Side, p.BNBAmount, p.TokenAmount)
	}
	if p.Fee != "" {
		t.Errorf("Fee = %q on a plain trade, want empty", p.Fee)
	}

	sell := testutil.NewTokenSold(regTokenA, regOwner, 400, 200, 3)
	p = NewEventPayload(events.NewProcessed(sell))
	if p.Side != storage.SideSell || p.BNBAmount != "400" {
		t.Errorf("sell payload = %s/%s, want sell/400", p.Side, p.BNBAmount)
	}

	detail := testutil.NewDetailedTransaction(regTokenA, regOwner, false, 400, 200, 25, 4)
	p = NewEventPayload(events.NewProcessed(detail))
	if p.Side != storage.SideSell || p.Fee != "25" {
		t.Errorf("detailed payload side/fee = %s/%s, want sell/25", p.Side, p.Fee)
	}
	if p.Trader != "0xdddddddddddddddddddddddddddddddddddddddd" {
		t.Errorf("Trader = %q, want lowercase address", p.Trader)
	}
}

func TestPushFrameType(t *testing.T) {
	cases := map[SubKind]string{
		SubToken:     FrameTokenEvent,
		SubMarket:    FrameMarketUpdate,
		SubUser:      FramePortfolioUpdate,
		SubPortfolio: FramePortfolioUpdate,
	}
	for kind, want := range cases {
		if got := pushFrameType(kind); got != want {
			t.Errorf("pushFrameType(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestNewTokenInfoPayload(t *testing.T) {
	now := time.Unix(1700000100, 0).UTC()
	rec := &storage.TokenRecord{
		Address:        regTokenA,
		Creator:        regOwner,
		Name:           "Moon",
		Symbol:         "MOON",
		SoldSupply:     big.NewInt(500),
		TotalRaised:    big.NewInt(1000),
		CreatedAtBlock: 7,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	p := NewTokenInfoPayload(rec)
	if p.Address != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Address = %q, want lowercase", p.Address)
	}
	if p.SoldSupply != "500" || p.TotalRaised != "1000" {
		t.Errorf("amounts = %s/%s, want 500/1000", p.SoldSupply, p.TotalRaised)
	}
	if p.LastPrice != "0" {
		t.Errorf("LastPrice = %q for nil price, want \"0\"", p.LastPrice)
	}
	if p.Graduated || p.GraduatedAt != 0 {
		t.Errorf("graduation = %v/%d, want false/0", p.Graduated, p.GraduatedAt)
	}
	if p.CreatedAt != now.UnixMilli() {
		t.Errorf("CreatedAt = %d, want %d", p.CreatedAt, now.UnixMilli())
	}
}

func TestNewMarketDataPayload(t *testing.T) {
	rec := &storage.MarketStatsRecord{
		TokenCount:     3,
		GraduatedCount: 1,
		TradeCount:     9,
		TotalVolume:    big.NewInt(4200),
		UpdatedAt:      time.Unix(1700000200, 0).UTC(),
	}

	p := NewMarketDataPayload(rec)
	if p.TokenCount != 3 || p.GraduatedCount != 1 || p.TradeCount != 9 {
		t.Errorf("counts = %d/%d/%d, want 3/1/9", p.TokenCount, p.GraduatedCount, p.TradeCount)
	}
	if p.TotalVolume != "4200" {
		t.Errorf("TotalVolume = %q, want 4200", p.TotalVolume)
	}

	empty := NewMarketDataPayload(&storage.MarketStatsRecord{})
	if empty.TotalVolume != "0" {
		t.Errorf("TotalVolume = %q for empty stats, want \"0\"", empty.TotalVolume)
	}
}

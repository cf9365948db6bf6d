package storage

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestMemoryStorage_TokenLifecycle(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.GetToken(ctx, testTokenA); err != ErrNotFound {
		t.Errorf("GetToken() error = %v, want ErrNotFound", err)
	}

	_, err := s.UpsertToken(ctx, testTokenA, &TokenPatch{
		Creator: addrPtr(testCreator),
		Name:    strPtr("Moon Token"),
		Symbol:  strPtr("MOON"),
	})
	if err != nil {
		t.Fatalf("UpsertToken() error = %v", err)
	}

	updated, err := s.UpsertToken(ctx, testTokenA, &TokenPatch{
		SoldSupplyDelta: big.NewInt(500),
		RaisedDelta:     big.NewInt(100),
		LastPrice:       big.NewInt(7),
	})
	if err != nil {
		t.Fatalf("UpsertToken() error = %v", err)
	}

	if updated.Name != "Moon Token" {
		t.Errorf("Name = %s, want Moon Token", updated.Name)
	}
	if updated.SoldSupply.Int64() != 500 {
		t.Errorf("SoldSupply = %s, want 500", updated.SoldSupply)
	}
	if updated.TotalRaised.Int64() != 100 {
		t.Errorf("TotalRaised = %s, want 100", updated.TotalRaised)
	}
	if updated.LastPrice.Int64() != 7 {
		t.Errorf("LastPrice = %s, want 7", updated.LastPrice)
	}

	stats, err := s.MarketStats(ctx)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.TokenCount != 1 {
		t.Errorf("TokenCount = %d, want 1", stats.TokenCount)
	}
}

func TestMemoryStorage_DuplicateTradeIsNoop(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	trade := createTestTrade(1, testTokenA, testTrader, SideBuy, 1000, 500)

	inserted, err := s.InsertTradeIfAbsent(ctx, trade)
	if err != nil {
		t.Fatalf("InsertTradeIfAbsent() error = %v", err)
	}
	if !inserted {
		t.Error("First insert should report true")
	}

	inserted, err = s.InsertTradeIfAbsent(ctx, trade)
	if err != nil {
		t.Fatalf("InsertTradeIfAbsent() error = %v", err)
	}
	if inserted {
		t.Error("Second insert of the same hash should report false")
	}

	stats, err := s.MarketStats(ctx)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", stats.TradeCount)
	}
	if stats.TotalVolume.Int64() != 1000 {
		t.Errorf("TotalVolume = %s, want 1000", stats.TotalVolume)
	}
}

func TestMemoryStorage_TradesNewestFirst(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	for i := byte(1); i <= 3; i++ {
		trade := createTestTrade(i, testTokenA, testTrader, SideBuy, int64(i)*100, 50)
		if _, err := s.InsertTradeIfAbsent(ctx, trade); err != nil {
			t.Fatalf("InsertTradeIfAbsent() error = %v", err)
		}
	}

	trades, err := s.GetTradesByToken(ctx, testTokenA, 10, 0)
	if err != nil {
		t.Fatalf("GetTradesByToken() error = %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(trades))
	}
	if trades[0].Hash != (common.Hash{3}) {
		t.Errorf("First trade = %s, want the latest insert", trades[0].Hash.Hex())
	}
	if trades[2].Hash != (common.Hash{1}) {
		t.Errorf("Last trade = %s, want the earliest insert", trades[2].Hash.Hex())
	}

	page, err := s.GetTradesByToken(ctx, testTokenA, 1, 1)
	if err != nil {
		t.Fatalf("GetTradesByToken() error = %v", err)
	}
	if len(page) != 1 || page[0].Hash != (common.Hash{2}) {
		t.Errorf("Paged trade = %v, want hash 0x02", page)
	}

	empty, err := s.GetTradesByToken(ctx, testTokenB, 10, 0)
	if err != nil {
		t.Fatalf("GetTradesByToken() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no trades for untraded token, got %d", len(empty))
	}
}

func TestMemoryStorage_AttachTradeFee(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	missing := common.HexToHash("0xdead")
	attached, err := s.AttachTradeFee(ctx, missing, big.NewInt(5))
	if err != nil {
		t.Fatalf("AttachTradeFee() error = %v", err)
	}
	if attached {
		t.Error("AttachTradeFee() on a missing trade should report false")
	}

	trade := createTestTrade(1, testTokenA, testTrader, SideBuy, 1000, 500)
	if _, err := s.InsertTradeIfAbsent(ctx, trade); err != nil {
		t.Fatalf("InsertTradeIfAbsent() error = %v", err)
	}

	attached, err = s.AttachTradeFee(ctx, trade.Hash, big.NewInt(5))
	if err != nil {
		t.Fatalf("AttachTradeFee() error = %v", err)
	}
	if !attached {
		t.Error("First AttachTradeFee() should report true")
	}

	attached, err = s.AttachTradeFee(ctx, trade.Hash, big.NewInt(50))
	if err != nil {
		t.Fatalf("AttachTradeFee() error = %v", err)
	}
	if attached {
		t.Error("Second AttachTradeFee() should report false")
	}

	stored, err := s.GetTrade(ctx, trade.Hash)
	if err != nil {
		t.Fatalf("GetTrade() error = %v", err)
	}
	if stored.Fee == nil || stored.Fee.Int64() != 5 {
		t.Errorf("Fee = %v, want the first attached value 5", stored.Fee)
	}
}

func TestMemoryStorage_GraduationIsOneWay(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	first := time.Unix(1700000000, 0).UTC()
	if err := s.SetGraduated(ctx, testTokenA, first); err != nil {
		t.Fatalf("SetGraduated() error = %v", err)
	}

	// Redelivery with a later timestamp must not move the original
	if err := s.SetGraduated(ctx, testTokenA, first.Add(time.Hour)); err != nil {
		t.Fatalf("SetGraduated() error = %v", err)
	}

	token, err := s.GetToken(ctx, testTokenA)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if !token.Graduated {
		t.Error("Token should be graduated")
	}
	if !token.GraduatedAt.Equal(first) {
		t.Errorf("GraduatedAt = %v, want %v", token.GraduatedAt, first)
	}

	stats, err := s.MarketStats(ctx)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.GraduatedCount != 1 {
		t.Errorf("GraduatedCount = %d, want 1", stats.GraduatedCount)
	}
	if stats.TokenCount != 1 {
		t.Errorf("TokenCount = %d, want 1 for the shell token", stats.TokenCount)
	}
}

func TestMemoryStorage_CloneIsolation(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	_, err := s.UpsertToken(ctx, testTokenA, &TokenPatch{
		Name:            strPtr("Moon Token"),
		SoldSupplyDelta: big.NewInt(100),
	})
	if err != nil {
		t.Fatalf("UpsertToken() error = %v", err)
	}

	// Mutating a returned record must not leak into the store
	got, err := s.GetToken(ctx, testTokenA)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	got.SoldSupply.SetInt64(9999)
	got.Name = "Changed"

	again, err := s.GetToken(ctx, testTokenA)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if again.SoldSupply.Int64() != 100 {
		t.Errorf("SoldSupply = %s, stored record was mutated through a read", again.SoldSupply)
	}
	if again.Name != "Moon Token" {
		t.Errorf("Name = %s, stored record was mutated through a read", again.Name)
	}

	// Mutating the caller's trade after insert must not change the store
	trade := createTestTrade(1, testTokenA, testTrader, SideBuy, 1000, 500)
	if _, err := s.InsertTradeIfAbsent(ctx, trade); err != nil {
		t.Fatalf("InsertTradeIfAbsent() error = %v", err)
	}
	trade.BNBAmount.SetInt64(0)

	stored, err := s.GetTrade(ctx, trade.Hash)
	if err != nil {
		t.Fatalf("GetTrade() error = %v", err)
	}
	if stored.BNBAmount.Int64() != 1000 {
		t.Errorf("BNBAmount = %s, stored record shares memory with the caller", stored.BNBAmount)
	}
}

func TestMemoryStorage_DailyAnalytics(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	date := "2024-03-15"
	if _, err := s.GetDailyAnalytics(ctx, testTokenA, date); err != ErrNotFound {
		t.Errorf("GetDailyAnalytics() error = %v, want ErrNotFound", err)
	}

	_, err := s.UpsertDailyAnalytics(ctx, testTokenA, date, &AnalyticsPatch{
		BuyVolumeDelta:  big.NewInt(1000),
		FeeDelta:        big.NewInt(10),
		TradeCountDelta: 1,
	})
	if err != nil {
		t.Fatalf("UpsertDailyAnalytics() error = %v", err)
	}

	record, err := s.UpsertDailyAnalytics(ctx, testTokenA, date, &AnalyticsPatch{
		SellVolumeDelta: big.NewInt(400),
		TradeCountDelta: 1,
	})
	if err != nil {
		t.Fatalf("UpsertDailyAnalytics() error = %v", err)
	}

	if record.BuyVolume.Int64() != 1000 {
		t.Errorf("BuyVolume = %s, want 1000", record.BuyVolume)
	}
	if record.SellVolume.Int64() != 400 {
		t.Errorf("SellVolume = %s, want 400", record.SellVolume)
	}
	if record.Fees.Int64() != 10 {
		t.Errorf("Fees = %s, want 10", record.Fees)
	}
	if record.TradeCount != 2 {
		t.Errorf("TradeCount = %d, want 2", record.TradeCount)
	}
}

func TestMemoryStorage_ListTokens(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	for _, addr := range []common.Address{testTokenB, testTokenA, testTokenC} {
		if _, err := s.UpsertToken(ctx, addr, &TokenPatch{Name: strPtr("T")}); err != nil {
			t.Fatalf("UpsertToken() error = %v", err)
		}
	}

	all, err := s.ListTokens(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListTokens() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 tokens, got %d", len(all))
	}

	// Insertion order must not matter
	for i := 1; i < len(all); i++ {
		if all[i-1].Address.Hex() >= all[i].Address.Hex() {
			t.Error("ListTokens() should return tokens in address order")
		}
	}

	page, err := s.ListTokens(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListTokens() error = %v", err)
	}
	if len(page) != 1 || page[0].Address != all[1].Address {
		t.Error("ListTokens() paging should slice the sorted order")
	}
}

func TestMemoryStorage_Close(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := s.GetToken(ctx, testTokenA); err != ErrClosed {
		t.Errorf("GetToken() after close error = %v, want ErrClosed", err)
	}
	if _, err := s.UpsertToken(ctx, testTokenA, &TokenPatch{}); err != ErrClosed {
		t.Errorf("UpsertToken() after close error = %v, want ErrClosed", err)
	}

	// Double close should be a no-op
	if err := s.Close(); err != nil {
		t.Fatalf("Second Close() error = %v", err)
	}
}

func TestMemoryStorage_ConcurrentTrades(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				trade := createTestTrade(1, testTokenA, testTrader, SideBuy, 10, 5)
				trade.Hash = common.BigToHash(big.NewInt(int64(g*perGoroutine + i + 1)))
				if _, err := s.InsertTradeIfAbsent(ctx, trade); err != nil {
					t.Errorf("InsertTradeIfAbsent() error = %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	stats, err := s.MarketStats(ctx)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if want := uint64(goroutines * perGoroutine); stats.TradeCount != want {
		t.Errorf("TradeCount = %d, want %d", stats.TradeCount, want)
	}

	trades, err := s.GetTradesByToken(ctx, testTokenA, goroutines*perGoroutine, 0)
	if err != nil {
		t.Fatalf("GetTradesByToken() error = %v", err)
	}
	if len(trades) != goroutines*perGoroutine {
		t.Errorf("Expected %d trades, got %d", goroutines*perGoroutine, len(trades))
	}
}

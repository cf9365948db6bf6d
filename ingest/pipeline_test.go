package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/testutil"
	"github.com/0xmhha/launchpad-go/storage"
	"github.com/ethereum/go-ethereum/common"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

// busRecorder captures announced events in application order
type busRecorder struct {
	mu     sync.Mutex
	evs    []*events.Processed
	reject bool
}

func (b *busRecorder) Publish(p *events.Processed) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reject {
		return false
	}
	b.evs = append(b.evs, p)
	return true
}

func (b *busRecorder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.evs)
}

func (b *busRecorder) ids() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.evs))
	for i, p := range b.evs {
		out[i] = p.ID
	}
	return out
}

// flakyStore fails UpsertToken for chosen addresses and counts calls
type flakyStore struct {
	storage.Storage
	mu        sync.Mutex
	failAddrs map[common.Address]bool
	upserts   int
}

func (s *flakyStore) UpsertToken(ctx context.Context, addr common.Address, patch *storage.TokenPatch) (*storage.TokenRecord, error) {
	s.mu.Lock()
	s.upserts++
	fail := s.failAddrs[addr]
	s.mu.Unlock()
	if fail {
		return nil, errors.New("injected storage failure")
	}
	return s.Storage.UpsertToken(ctx, addr, patch)
}

func (s *flakyStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// slowTestConfig keeps the timer out of the way so tests drive batching
// through Flush or the size trigger
func slowTestConfig() config.IngestConfig {
	return config.IngestConfig{
		BatchSize:       10,
		FlushInterval:   time.Minute,
		RetryDelay:      5 * time.Millisecond,
		MaxBatchRetries: 3,
		QueueCap:        100,
	}
}

func newTestPipeline(t *testing.T, store Store, bus Publisher, cfg config.IngestConfig) *Pipeline {
	t.Helper()
	p := NewPipeline(store, nil, bus, cfg, zap.NewNop())
	go p.Run()
	t.Cleanup(p.Stop)
	return p
}

func TestPipeline_AppliesAndAnnounces(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	p := newTestPipeline(t, store, bus, slowTestConfig())
	ctx := context.Background()

	buy := testutil.NewTokenBought(tokenA, trader, 1000, 500, 1)
	p.Enqueue(buy)
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := bus.count(); got != 1 {
		t.Fatalf("announcements = %d, want 1", got)
	}
	pr := bus.evs[0]
	if want := events.ProcessedID(events.KindTokenBought, buy.Hash); pr.ID != want {
		t.Errorf("ID = %q, want %q", pr.ID, want)
	}
	if pr.Token != tokenA || pr.Owner != trader {
		t.Errorf("routing fields = %s/%s, want %s/%s",
			pr.Token.Hex(), pr.Owner.Hex(), tokenA.Hex(), trader.Hex())
	}

	has, err := store.HasTrade(ctx, buy.Hash)
	if err != nil || !has {
		t.Errorf("HasTrade() = %v, %v, want true, nil", has, err)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after flush", p.Len())
	}
}

func TestPipeline_TimerTriggersBatch(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	cfg := slowTestConfig()
	cfg.FlushInterval = 20 * time.Millisecond
	p := newTestPipeline(t, store, bus, cfg)

	// One event stays under the size trigger; only the timer can move it.
	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 1))
	testutil.WaitFor(t, time.Second, func() bool { return bus.count() == 1 }, "timer flush")
}

func TestPipeline_SizeTriggersImmediateBatch(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	cfg := slowTestConfig()
	cfg.BatchSize = 3
	p := newTestPipeline(t, store, bus, cfg)

	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 1))
	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 2))
	time.Sleep(50 * time.Millisecond)
	if got := bus.count(); got != 0 {
		t.Fatalf("announcements before threshold = %d, want 0", got)
	}

	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 3))
	testutil.WaitFor(t, time.Second, func() bool { return bus.count() == 3 }, "size-triggered batch")
}

func TestPipeline_DuplicateAnnouncedOnce(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	p := newTestPipeline(t, store, bus, slowTestConfig())
	ctx := context.Background()

	buy := testutil.NewTokenBought(tokenA, trader, 1000, 500, 1)
	p.Enqueue(buy)
	p.Enqueue(buy)
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := bus.count(); got != 1 {
		t.Errorf("announcements = %d, want 1 for a redelivered trade", got)
	}
	stats, err := store.MarketStats(ctx)
	if err != nil {
		t.Fatalf("MarketStats() error = %v", err)
	}
	if stats.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", stats.TradeCount)
	}
}

func TestPipeline_RetryThenPoison(t *testing.T) {
	mem := storage.NewMemoryStorage()
	defer mem.Close()
	flaky := &flakyStore{
		Storage:   mem,
		failAddrs: map[common.Address]bool{tokenB: true},
	}
	bus := &busRecorder{}
	p := newTestPipeline(t, flaky, bus, slowTestConfig())
	ctx := context.Background()

	bad := testutil.NewTokenCreated(tokenB, creator, 1)
	good := testutil.NewTokenBought(tokenA, trader, 1000, 500, 2)
	p.Enqueue(bad)
	p.Enqueue(good)
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	ids := bus.ids()
	if len(ids) != 1 || ids[0] != events.ProcessedID(events.KindTokenBought, good.Hash) {
		t.Errorf("announcements = %v, want only the surviving trade", ids)
	}

	if _, err := mem.GetToken(ctx, tokenB); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetToken(bad) error = %v, want ErrNotFound", err)
	}
	if has, _ := mem.HasTrade(ctx, good.Hash); !has {
		t.Error("surviving trade was not stored")
	}

	// Three whole-batch attempts fail on the bad token, then the poison
	// pass tries it once more and applies the good item.
	if got := flaky.upsertCount(); got != 5 {
		t.Errorf("UpsertToken calls = %d, want 5", got)
	}
}

func TestPipeline_QueueCapDropsOldest(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	cfg := slowTestConfig()
	cfg.BatchSize = 100
	cfg.QueueCap = 5
	p := newTestPipeline(t, store, bus, cfg)
	ctx := context.Background()

	for seq := byte(1); seq <= 8; seq++ {
		p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, seq))
	}
	if got := p.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5 at cap", got)
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	announced := make(map[string]bool)
	for _, id := range bus.ids() {
		announced[id] = true
	}
	for seq := byte(1); seq <= 3; seq++ {
		if announced[events.ProcessedID(events.KindTokenBought, common.Hash{seq})] {
			t.Errorf("dropped event %d was applied", seq)
		}
	}
	for seq := byte(4); seq <= 8; seq++ {
		if !announced[events.ProcessedID(events.KindTokenBought, common.Hash{seq})] {
			t.Errorf("surviving event %d was not applied", seq)
		}
	}
}

func TestPipeline_PerEntityOrdering(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{}
	cfg := slowTestConfig()
	cfg.BatchSize = 2
	p := newTestPipeline(t, store, bus, cfg)
	ctx := context.Background()

	for seq := byte(1); seq <= 6; seq++ {
		p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, seq))
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	ids := bus.ids()
	if len(ids) != 6 {
		t.Fatalf("announcements = %d, want 6", len(ids))
	}
	for i, id := range ids {
		want := events.ProcessedID(events.KindTokenBought, common.Hash{byte(i + 1)})
		if id != want {
			t.Errorf("announcement[%d] = %q, want %q", i, id, want)
		}
	}
}

func TestPipeline_BusRejectionDoesNotBlockApply(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	bus := &busRecorder{reject: true}
	p := newTestPipeline(t, store, bus, slowTestConfig())
	ctx := context.Background()

	buy := testutil.NewTokenBought(tokenA, trader, 1000, 500, 1)
	p.Enqueue(buy)
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if has, _ := store.HasTrade(ctx, buy.Hash); !has {
		t.Error("trade not stored despite bus rejection")
	}
	if got := bus.count(); got != 0 {
		t.Errorf("announcements = %d, want 0 with rejecting bus", got)
	}
}

func TestPipeline_FlushAfterStop(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	p := NewPipeline(store, nil, nil, slowTestConfig(), zap.NewNop())
	go p.Run()
	p.Stop()

	if err := p.Flush(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Flush() error = %v, want ErrStopped", err)
	}
}

func TestPipeline_MetricsCounters(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	cfg := slowTestConfig()
	cfg.QueueCap = 1

	// No Run loop: the queue only accumulates, which makes the overflow
	// deterministic.
	p := NewPipeline(store, nil, nil, cfg, zap.NewNop())
	m := NewMetrics("test_ingest_pipeline", "")
	p.SetMetrics(m)

	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 1))
	p.Enqueue(testutil.NewTokenBought(tokenA, trader, 1000, 500, 2))

	if got := promtestutil.ToFloat64(m.QueueDroppedTotal); got != 1 {
		t.Errorf("queue_dropped_total = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(m.EventsEnqueuedTotal.WithLabelValues(string(events.KindTokenBought))); got != 2 {
		t.Errorf("events_enqueued_total = %v, want 2", got)
	}
	if got := promtestutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Errorf("queue_depth = %v, want 1", got)
	}
}

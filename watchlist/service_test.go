package watchlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/storage"
)

var (
	watchTokenA = common.HexToAddress("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	watchTokenB = common.HexToAddress("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb")
	watchTokenC = common.HexToAddress("0xCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCc")
)

func testWatchlistConfig() config.WatchlistConfig {
	return config.WatchlistConfig{
		Enabled:           true,
		MaxPerUser:        10,
		ExpectedTokens:    1000,
		FalsePositiveRate: 0.001,
	}
}

func TestServiceAddRemove(t *testing.T) {
	ctx := context.Background()
	svc := New(storage.NewMemoryStorage(), testWatchlistConfig(), nil)

	added, err := svc.Add(ctx, "User-A", watchTokenA, "gem")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !added {
		t.Error("expected first Add to report a new entry")
	}

	// Re-adding updates the label but keeps the original AddedAt.
	entries := svc.Entries("user-a")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	firstAddedAt := entries[0].AddedAt

	added, err = svc.Add(ctx, "user-a", watchTokenA, "renamed")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added {
		t.Error("expected re-Add to report an existing entry")
	}

	entries = svc.Entries("USER-A")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after re-add, got %d", len(entries))
	}
	if entries[0].Label != "renamed" {
		t.Errorf("expected label %q, got %q", "renamed", entries[0].Label)
	}
	if !entries[0].AddedAt.Equal(firstAddedAt) {
		t.Errorf("expected AddedAt %v to survive re-add, got %v", firstAddedAt, entries[0].AddedAt)
	}

	removed, err := svc.Remove(ctx, "user-a", watchTokenA)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Error("expected Remove to report a removed entry")
	}

	// Removing an absent entry is a no-op.
	removed, err = svc.Remove(ctx, "user-a", watchTokenA)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Error("expected second Remove to report no entry")
	}

	if got := svc.Entries("user-a"); len(got) != 0 {
		t.Errorf("expected empty watchlist, got %d entries", len(got))
	}
}

func TestServicePerUserLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testWatchlistConfig()
	cfg.MaxPerUser = 2
	svc := New(nil, cfg, nil)

	if _, err := svc.Add(ctx, "user-a", watchTokenA, ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Add(ctx, "user-a", watchTokenB, ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	_, err := svc.Add(ctx, "user-a", watchTokenC, "")
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}

	// Updating an existing entry is allowed at the limit.
	if _, err := svc.Add(ctx, "user-a", watchTokenA, "still fine"); err != nil {
		t.Fatalf("Add at limit for existing entry failed: %v", err)
	}

	// Another user has their own budget.
	if _, err := svc.Add(ctx, "user-b", watchTokenC, ""); err != nil {
		t.Fatalf("Add for second user failed: %v", err)
	}
}

func TestServiceWatchersOf(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, testWatchlistConfig(), nil)

	if got := svc.WatchersOf(watchTokenA); got != nil {
		t.Fatalf("expected nil watchers before any Add, got %v", got)
	}

	if _, err := svc.Add(ctx, "user-b", watchTokenA, ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Add(ctx, "user-a", watchTokenA, ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	watchers := svc.WatchersOf(watchTokenA)
	if len(watchers) != 2 || watchers[0] != "user-a" || watchers[1] != "user-b" {
		t.Fatalf("expected sorted watchers [user-a user-b], got %v", watchers)
	}

	if got := svc.WatchersOf(watchTokenB); got != nil {
		t.Errorf("expected nil watchers for unwatched token, got %v", got)
	}

	if _, err := svc.Remove(ctx, "user-a", watchTokenA); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := svc.Remove(ctx, "user-b", watchTokenA); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := svc.WatchersOf(watchTokenA); got != nil {
		t.Errorf("expected nil watchers after removals, got %v", got)
	}

	users, tokens := svc.Counts()
	if users != 0 || tokens != 0 {
		t.Errorf("expected empty counts, got users=%d tokens=%d", users, tokens)
	}
}

func TestServiceLoadHydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	base := time.Unix(1700000000, 0).UTC()
	seed := []*storage.WatchRecord{
		{UserID: "user-a", Token: watchTokenB, Label: "second", CreatedAt: base.Add(time.Hour)},
		{UserID: "user-a", Token: watchTokenA, Label: "first", CreatedAt: base},
		{UserID: "user-b", Token: watchTokenA, Label: "", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, rec := range seed {
		if err := store.PutWatch(ctx, rec); err != nil {
			t.Fatalf("PutWatch failed: %v", err)
		}
	}

	svc := New(store, testWatchlistConfig(), nil)
	loaded, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != 3 {
		t.Fatalf("expected 3 loaded entries, got %d", loaded)
	}

	// Entries come back ordered by AddedAt.
	entries := svc.Entries("user-a")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for user-a, got %d", len(entries))
	}
	if entries[0].Label != "first" || entries[1].Label != "second" {
		t.Errorf("expected entries ordered oldest first, got [%s %s]", entries[0].Label, entries[1].Label)
	}

	watchers := svc.WatchersOf(watchTokenA)
	if len(watchers) != 2 {
		t.Fatalf("expected 2 watchers of token A, got %v", watchers)
	}

	users, tokens := svc.Counts()
	if users != 2 || tokens != 2 {
		t.Errorf("expected users=2 tokens=2, got users=%d tokens=%d", users, tokens)
	}
}

func TestServiceWriteThroughPersistence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	svc := New(store, testWatchlistConfig(), nil)

	if _, err := svc.Add(ctx, "user-a", watchTokenA, "kept"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Add(ctx, "user-a", watchTokenB, "dropped"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Remove(ctx, "user-a", watchTokenB); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	// A fresh service over the same store sees only the surviving entry.
	rehydrated := New(store, testWatchlistConfig(), nil)
	if _, err := rehydrated.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	entries := rehydrated.Entries("user-a")
	if len(entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(entries))
	}
	if entries[0].Token != watchTokenA || entries[0].Label != "kept" {
		t.Errorf("unexpected persisted entry: token=%s label=%q", entries[0].Token.Hex(), entries[0].Label)
	}
}

func TestServiceRequiresUserID(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, testWatchlistConfig(), nil)

	if _, err := svc.Add(ctx, "   ", watchTokenA, ""); err == nil {
		t.Error("expected Add with blank user id to fail")
	}
	if _, err := svc.Remove(ctx, "", watchTokenA); err == nil {
		t.Error("expected Remove with blank user id to fail")
	}
}

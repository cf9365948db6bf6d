// Package watchlist maintains per-user sets of watched token addresses.
//
// Watchlists are persisted through the store and mirrored in memory as two
// indexes: user to watched tokens, and token to watching users. A bloom
// filter over the watched tokens lets the event fan-out skip tokens nobody
// watches without touching the indexes.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/0xmhha/launchpad-go/storage"
)

// ErrLimitReached is returned by Add when the user already watches the
// configured maximum number of tokens.
var ErrLimitReached = errors.New("watchlist limit reached")

// Store is the subset of the persisted store the watchlist needs.
type Store interface {
	PutWatch(ctx context.Context, rec *storage.WatchRecord) error
	DeleteWatch(ctx context.Context, userID string, token common.Address) error
	ListWatches(ctx context.Context) ([]*storage.WatchRecord, error)
}

// Entry is one watched token for one user.
type Entry struct {
	Token   common.Address
	Label   string
	AddedAt time.Time
}

// Service answers watchlist reads and applies watchlist writes.
//
// All mutations are write-through: the store write happens under the same
// lock as the index update, so a successful Add or Remove is both durable
// and immediately visible to WatchersOf.
type Service struct {
	store  Store
	logger *zap.Logger

	maxPerUser int

	mu      sync.RWMutex
	byUser  map[string]map[common.Address]Entry
	byToken map[common.Address]map[string]struct{}
	bloom   *Bloom
}

// New creates a watchlist service. The store may be nil, in which case
// watchlists live only in memory.
func New(store Store, cfg config.WatchlistConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxPerUser := cfg.MaxPerUser
	if maxPerUser <= 0 {
		maxPerUser = constants.DefaultWatchlistMaxPerUser
	}

	return &Service{
		store:      store,
		logger:     logger.Named("watchlist"),
		maxPerUser: maxPerUser,
		byUser:     make(map[string]map[common.Address]Entry),
		byToken:    make(map[common.Address]map[string]struct{}),
		bloom:      NewBloom(cfg.ExpectedTokens, cfg.FalsePositiveRate),
	}
}

// Load hydrates the in-memory indexes from the store. It returns the number
// of entries loaded and must be called before the service starts answering
// queries.
func (s *Service) Load(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	records, err := s.store.ListWatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("list watches: %w", err)
	}

	s.mu.Lock()
	for _, rec := range records {
		s.insertLocked(normalizeUser(rec.UserID), rec.Token, Entry{
			Token:   rec.Token,
			Label:   rec.Label,
			AddedAt: rec.CreatedAt,
		})
	}
	users := len(s.byUser)
	tokens := len(s.byToken)
	s.mu.Unlock()

	s.logger.Info("watchlist hydrated",
		zap.Int("entries", len(records)),
		zap.Int("users", users),
		zap.Int("tokens", tokens),
	)

	return len(records), nil
}

// Add watches a token for a user. Re-adding an already watched token updates
// the label and keeps the original AddedAt. The per-user limit applies only
// to new entries. The returned bool reports whether a new entry was created.
func (s *Service) Add(ctx context.Context, userID string, token common.Address, label string) (bool, error) {
	userID = normalizeUser(userID)
	if userID == "" {
		return false, errors.New("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, watched := s.byUser[userID][token]
	if !watched && len(s.byUser[userID]) >= s.maxPerUser {
		return false, ErrLimitReached
	}

	addedAt := time.Now().UTC()
	if watched {
		addedAt = existing.AddedAt
	}

	if s.store != nil {
		rec := &storage.WatchRecord{
			UserID:    userID,
			Token:     token,
			Label:     label,
			CreatedAt: addedAt,
		}
		if err := s.store.PutWatch(ctx, rec); err != nil {
			return false, fmt.Errorf("put watch: %w", err)
		}
	}

	s.insertLocked(userID, token, Entry{Token: token, Label: label, AddedAt: addedAt})

	return !watched, nil
}

// Remove stops watching a token for a user. Removing an absent entry is a
// no-op. The returned bool reports whether an entry existed.
func (s *Service) Remove(ctx context.Context, userID string, token common.Address) (bool, error) {
	userID = normalizeUser(userID)
	if userID == "" {
		return false, errors.New("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, ok := s.byUser[userID]
	if !ok {
		return false, nil
	}
	if _, ok := tokens[token]; !ok {
		return false, nil
	}

	if s.store != nil {
		if err := s.store.DeleteWatch(ctx, userID, token); err != nil {
			return false, fmt.Errorf("delete watch: %w", err)
		}
	}

	delete(tokens, token)
	if len(tokens) == 0 {
		delete(s.byUser, userID)
	}

	watchers := s.byToken[token]
	delete(watchers, userID)
	if len(watchers) == 0 {
		delete(s.byToken, token)
	}

	return true, nil
}

// Entries returns the user's watched tokens ordered by AddedAt, oldest
// first, with the address as tiebreaker.
func (s *Service) Entries(userID string) []Entry {
	userID = normalizeUser(userID)

	s.mu.RLock()
	tokens := s.byUser[userID]
	entries := make([]Entry, 0, len(tokens))
	for _, e := range tokens {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].AddedAt.Before(entries[j].AddedAt)
		}
		return entries[i].Token.Hex() < entries[j].Token.Hex()
	})

	return entries
}

// WatchersOf returns the IDs of users watching a token, sorted. It returns
// nil for tokens nobody watches, answered by the bloom filter alone in the
// common case.
func (s *Service) WatchersOf(token common.Address) []string {
	if !s.bloom.MightContain(token) {
		return nil
	}

	s.mu.RLock()
	watchers := s.byToken[token]
	if len(watchers) == 0 {
		s.mu.RUnlock()
		return nil
	}
	ids := make([]string, 0, len(watchers))
	for id := range watchers {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Counts returns the number of users with a non-empty watchlist and the
// number of distinct watched tokens.
func (s *Service) Counts() (users int, tokens int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser), len(s.byToken)
}

// insertLocked updates both indexes and, on a token's first watcher, the
// bloom filter. Caller holds s.mu.
func (s *Service) insertLocked(userID string, token common.Address, e Entry) {
	tokens := s.byUser[userID]
	if tokens == nil {
		tokens = make(map[common.Address]Entry)
		s.byUser[userID] = tokens
	}
	tokens[token] = e

	watchers := s.byToken[token]
	if watchers == nil {
		watchers = make(map[string]struct{})
		s.byToken[token] = watchers
		s.bloom.Add(token)
	}
	watchers[userID] = struct{}{}
}

func normalizeUser(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

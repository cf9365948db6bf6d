package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	// logBuffer is the channel capacity between the transport and the
	// delivery loop
	logBuffer = 256

	// blockTimeCacheSize bounds the block-timestamp cache; the cache
	// resets once full
	blockTimeCacheSize = 1024
)

// ErrSourceClosed is returned by subscribe calls after Close
var ErrSourceClosed = errors.New("source closed")

// LogSubscriber is the transport the source drives. *Client satisfies it.
type LogSubscriber interface {
	SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// Handler consumes parsed launchpad events
type Handler func(events.Event)

// SubscriptionID identifies one active source subscription
type SubscriptionID uint64

// subscription is one handler's live log stream
type subscription struct {
	id      SubscriptionID
	query   ethereum.FilterQuery
	handler Handler
	cancel  context.CancelFunc
}

// Source turns the ledger's log stream into parsed launchpad events.
// Dropped subscriptions are redialled internally, with a backfill query
// covering the gap; overlap with live delivery is harmless because the
// pipeline applies events idempotently.
type Source struct {
	client      LogSubscriber
	parser      *Parser
	logger      *zap.Logger
	redialDelay time.Duration
	callTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[SubscriptionID]*subscription
	nextID SubscriptionID
	closed bool

	timeMu     sync.Mutex
	blockTimes map[uint64]time.Time
}

// NewSource creates an event source over the given transport
func NewSource(client LogSubscriber, parser *Parser, cfg config.ChainConfig, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}

	redialDelay := cfg.RedialDelay
	if redialDelay <= 0 {
		redialDelay = constants.DefaultRedialDelay
	}
	callTimeout := cfg.Timeout
	if callTimeout <= 0 {
		callTimeout = constants.DefaultChainTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Source{
		client:      client,
		parser:      parser,
		logger:      logger.With(zap.String("component", "chain-source")),
		redialDelay: redialDelay,
		callTimeout: callTimeout,
		ctx:         ctx,
		cancel:      cancel,
		subs:        make(map[SubscriptionID]*subscription),
		blockTimes:  make(map[uint64]time.Time, blockTimeCacheSize),
	}
}

// SubscribeGlobal delivers every launchpad event of the given kinds
func (s *Source) SubscribeGlobal(kinds []events.Kind, fn Handler) (SubscriptionID, error) {
	return s.subscribe(s.parser.Query(kinds, nil), fn)
}

// SubscribeEntity delivers events of the given kinds for a single token
func (s *Source) SubscribeEntity(token common.Address, kinds []events.Kind, fn Handler) (SubscriptionID, error) {
	return s.subscribe(s.parser.Query(kinds, []common.Address{token}), fn)
}

func (s *Source) subscribe(query ethereum.FilterQuery, fn Handler) (SubscriptionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSourceClosed
	}

	s.nextID++
	subCtx, subCancel := context.WithCancel(s.ctx)
	sub := &subscription{
		id:      s.nextID,
		query:   query,
		handler: fn,
		cancel:  subCancel,
	}
	s.subs[sub.id] = sub

	s.wg.Add(1)
	go s.run(subCtx, sub)

	s.logger.Debug("source subscription opened", zap.Uint64("id", uint64(sub.id)))
	return sub.id, nil
}

// Unsubscribe tears down one subscription
func (s *Source) Unsubscribe(id SubscriptionID) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if ok {
		sub.cancel()
		s.logger.Debug("source subscription closed", zap.Uint64("id", uint64(id)))
	}
}

// Close tears down every subscription and stops the source
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = make(map[SubscriptionID]*subscription)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// run keeps one subscription streaming, redialling after transport drops
func (s *Source) run(ctx context.Context, sub *subscription) {
	defer s.wg.Done()

	var lastBlock uint64
	for {
		err := s.stream(ctx, sub, &lastBlock)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("log subscription dropped, redialling",
			zap.Uint64("id", uint64(sub.id)),
			zap.Duration("delay", s.redialDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.redialDelay):
		}
	}
}

// stream opens the live subscription, backfills the gap since lastBlock,
// then delivers until the transport fails
func (s *Source) stream(ctx context.Context, sub *subscription, lastBlock *uint64) error {
	logs := make(chan types.Log, logBuffer)
	ethSub, err := s.client.SubscribeLogs(ctx, sub.query, logs)
	if err != nil {
		return err
	}
	defer ethSub.Unsubscribe()

	if *lastBlock > 0 {
		s.backfill(ctx, sub, lastBlock)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-ethSub.Err():
			return err
		case lg := <-logs:
			s.deliver(sub, &lg, lastBlock)
		}
	}
}

// backfill replays logs emitted while the subscription was down
func (s *Source) backfill(ctx context.Context, sub *subscription, lastBlock *uint64) {
	query := sub.query
	query.FromBlock = new(big.Int).SetUint64(*lastBlock + 1)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	missed, err := s.client.FilterLogs(callCtx, query)
	if err != nil {
		s.logger.Warn("backfill query failed",
			zap.Uint64("id", uint64(sub.id)),
			zap.Uint64("from_block", *lastBlock+1),
			zap.Error(err))
		return
	}

	if len(missed) > 0 {
		s.logger.Info("backfilled missed logs",
			zap.Uint64("id", uint64(sub.id)),
			zap.Int("count", len(missed)))
	}
	for i := range missed {
		s.deliver(sub, &missed[i], lastBlock)
	}
}

// deliver parses one log and hands the event to the subscriber
func (s *Source) deliver(sub *subscription, lg *types.Log, lastBlock *uint64) {
	if lg.Removed {
		return
	}

	ev, err := s.parser.Parse(lg, s.blockTime(lg.BlockNumber))
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			s.logger.Debug("skipping unknown log",
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Error(err))
		} else {
			s.logger.Warn("failed to parse log",
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Uint64("block", lg.BlockNumber),
				zap.Error(err))
		}
		return
	}

	if lg.BlockNumber > *lastBlock {
		*lastBlock = lg.BlockNumber
	}
	sub.handler(ev)
}

// blockTime resolves a block's timestamp, caching per block number.
// Resolution failure falls back to receipt time.
func (s *Source) blockTime(number uint64) time.Time {
	s.timeMu.Lock()
	if t, ok := s.blockTimes[number]; ok {
		s.timeMu.Unlock()
		return t
	}
	s.timeMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()

	t, err := s.client.BlockTime(ctx, number)
	if err != nil {
		s.logger.Warn("failed to resolve block time",
			zap.Uint64("block", number),
			zap.Error(err))
		return time.Now().UTC()
	}

	s.timeMu.Lock()
	if len(s.blockTimes) >= blockTimeCacheSize {
		s.blockTimes = make(map[uint64]time.Time, blockTimeCacheSize)
	}
	s.blockTimes[number] = t
	s.timeMu.Unlock()

	return t
}

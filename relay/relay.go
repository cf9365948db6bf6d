// Package relay streams processed launchpad events onto a Kafka topic for
// downstream consumers such as analytics pipelines and notification
// services. Messages are keyed by token address so per-token ordering
// survives partitioning.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
)

// subscriptionID identifies the relay on the event bus.
const subscriptionID = "kafka-relay"

// writeTimeout bounds a single enqueue into the async writer.
const writeTimeout = 10 * time.Second

// messageWriter is the slice of kafka.Writer the relay depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Relay subscribes to the event bus and forwards every processed event to
// Kafka. Delivery is asynchronous: WriteMessages enqueues into the writer's
// batch buffer and broker errors surface through the completion callback.
type Relay struct {
	config config.RelayConfig
	bus    *events.Bus
	writer messageWriter
	logger *zap.Logger

	sub *events.Subscription
	wg  sync.WaitGroup

	enqueued atomic.Uint64
	failed   atomic.Uint64
}

// New creates a relay for the given Kafka configuration. The bus
// subscription is not taken until Start.
func New(cfg config.RelayConfig, bus *events.Bus, logger *zap.Logger) (*Relay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("relay: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("relay: topic is required")
	}

	writer, err := newWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	r := &Relay{
		config: cfg,
		bus:    bus,
		writer: writer,
		logger: logger,
	}

	writer.Completion = func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		r.failed.Add(uint64(len(messages)))
		r.logger.Error("kafka delivery failed",
			zap.Int("messages", len(messages)),
			zap.Error(err),
		)
	}

	return r, nil
}

// Start subscribes to the bus and begins forwarding events.
func (r *Relay) Start() error {
	sub := r.bus.Subscribe(subscriptionID, events.AllKinds(), nil, constants.DefaultEventBufferSize)
	if sub == nil {
		return errors.New("relay: event bus rejected subscription")
	}
	r.sub = sub

	r.wg.Add(1)
	go r.run()

	r.logger.Info("kafka relay started",
		zap.Strings("brokers", r.config.Brokers),
		zap.String("topic", r.config.Topic),
		zap.String("compression", r.config.Compression),
	)
	return nil
}

func (r *Relay) run() {
	defer r.wg.Done()

	for pr := range r.sub.Channel {
		r.publish(pr)
	}
}

// publish enqueues one processed event. Failures are counted and logged,
// never propagated: the relay must not stall the bus.
func (r *Relay) publish(pr *events.Processed) {
	value, err := json.Marshal(newMessage(pr))
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to encode relay message", zap.String("id", pr.ID), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(strings.ToLower(pr.Token.Hex())),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(pr.Kind)},
			{Key: "txHash", Value: []byte(pr.Event.TxHash().Hex())},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to enqueue kafka message", zap.String("id", pr.ID), zap.Error(err))
		return
	}
	r.enqueued.Add(1)
}

// Stop unsubscribes from the bus, drains in-flight events and flushes the
// writer. Safe to call when Start was never called.
func (r *Relay) Stop() {
	if r.sub != nil {
		r.bus.Unsubscribe(subscriptionID)
	}
	r.wg.Wait()

	if err := r.writer.Close(); err != nil {
		r.logger.Error("error closing kafka writer", zap.Error(err))
	}

	enqueued, failed := r.Stats()
	r.logger.Info("kafka relay stopped",
		zap.Uint64("enqueued", enqueued),
		zap.Uint64("failed", failed),
	)
}

// Stats returns the number of messages handed to the writer and the number
// that failed to encode, enqueue or deliver.
func (r *Relay) Stats() (enqueued, failed uint64) {
	return r.enqueued.Load(), r.failed.Load()
}

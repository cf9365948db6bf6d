// Package notify posts processed launchpad events to a configured webhook
// endpoint. Bodies are signed with HMAC-SHA256 when a secret is set so
// receivers can verify the origin. Delivery is best effort: failed posts
// are retried a bounded number of times and then dropped.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
)

// subscriptionID identifies the notifier on the event bus.
const subscriptionID = "webhook-notifier"

// signatureHeader carries the HMAC-SHA256 body signature.
const signatureHeader = "X-Signature-256"

// responseLimit caps how much of the endpoint's response is read.
const responseLimit = 10 * 1024

// Notifier subscribes to the event bus and posts each matching processed
// event to the webhook endpoint.
type Notifier struct {
	config config.NotifyConfig
	bus    *events.Bus
	kinds  []events.Kind
	client *http.Client
	logger *zap.Logger

	sub      *events.Subscription
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// New creates a notifier for the given configuration. The bus subscription
// is not taken until Start. An empty kind list subscribes to the launch
// milestones, token_created and token_graduated.
func New(cfg config.NotifyConfig, bus *events.Bus, logger *zap.Logger) (*Notifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WebhookURL == "" {
		return nil, errors.New("notify: webhook url is required")
	}
	parsed, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid webhook url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("notify: webhook url must use http or https scheme")
	}

	kinds, err := parseKinds(cfg.Kinds)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultNotifyTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.DefaultNotifyMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = constants.DefaultNotifyRetryDelay
	}

	return &Notifier{
		config: cfg,
		bus:    bus,
		kinds:  kinds,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.Named("notify"),
		stopCh: make(chan struct{}),
	}, nil
}

// Start subscribes to the bus and begins delivering events.
func (n *Notifier) Start() error {
	sub := n.bus.Subscribe(subscriptionID, n.kinds, nil, constants.DefaultEventBufferSize)
	if sub == nil {
		return errors.New("notify: event bus rejected subscription")
	}
	n.sub = sub

	n.wg.Add(1)
	go n.run()

	n.logger.Info("webhook notifier started",
		zap.String("url", n.config.WebhookURL),
		zap.Strings("kinds", kindNames(n.kinds)),
		zap.Bool("signed", n.config.Secret != ""),
	)
	return nil
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for pr := range n.sub.Channel {
		select {
		case <-n.stopCh:
			// Backlog queued at shutdown is dropped, not delivered.
			n.failed.Add(1)
			continue
		default:
		}
		n.deliver(pr)
	}
}

// deliver posts one event, retrying up to MaxAttempts with a fixed delay.
// Failures are counted and logged, never propagated: the notifier must not
// stall the bus.
func (n *Notifier) deliver(pr *events.Processed) {
	body, err := json.Marshal(newEnvelope(pr))
	if err != nil {
		n.failed.Add(1)
		n.logger.Error("failed to encode webhook body", zap.String("id", pr.ID), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= n.config.MaxAttempts; attempt++ {
		err := n.post(pr, body)
		if err == nil {
			n.delivered.Add(1)
			n.logger.Debug("webhook delivered",
				zap.String("id", pr.ID),
				zap.Int("attempt", attempt),
			)
			return
		}
		n.logger.Warn("webhook delivery failed",
			zap.String("id", pr.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", n.config.MaxAttempts),
			zap.Error(err),
		)
		if attempt < n.config.MaxAttempts && !n.sleep(n.config.RetryDelay) {
			break
		}
	}
	n.failed.Add(1)
}

// post sends one signed request and treats any 2xx status as success.
func (n *Notifier) post(pr *events.Processed, body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, n.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Launchpad-Webhook/1.0")
	req.Header.Set("X-Webhook-ID", pr.ID)
	req.Header.Set("X-Event-Kind", string(pr.Kind))
	if n.config.Secret != "" {
		req.Header.Set(signatureHeader, "sha256="+signBody(body, n.config.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseLimit))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// sleep waits for the retry delay. It returns false when the notifier is
// stopping and the retry should be abandoned.
func (n *Notifier) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-n.stopCh:
		return false
	}
}

// Stop unsubscribes from the bus, abandons pending retries and waits for
// the delivery loop to finish. Safe to call when Start was never called.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})
	if n.sub != nil {
		n.bus.Unsubscribe(subscriptionID)
	}
	n.wg.Wait()
	n.client.CloseIdleConnections()

	delivered, failed := n.Stats()
	n.logger.Info("webhook notifier stopped",
		zap.Uint64("delivered", delivered),
		zap.Uint64("failed", failed),
	)
}

// Stats returns the number of events delivered and the number dropped
// after encoding failures, exhausted retries or shutdown.
func (n *Notifier) Stats() (delivered, failed uint64) {
	return n.delivered.Load(), n.failed.Load()
}

// VerifySignature checks a webhook body against its signature header.
// Receivers use it to confirm the request came from the notifier.
func VerifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(expected, mac.Sum(nil))
}

// signBody computes the hex HMAC-SHA256 of the body
func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseKinds resolves configured kind names, defaulting to the launch
// milestones when none are given.
func parseKinds(names []string) ([]events.Kind, error) {
	if len(names) == 0 {
		return []events.Kind{events.KindTokenCreated, events.KindTokenGraduated}, nil
	}

	valid := make(map[events.Kind]bool, len(events.AllKinds()))
	for _, k := range events.AllKinds() {
		valid[k] = true
	}

	kinds := make([]events.Kind, 0, len(names))
	seen := make(map[events.Kind]bool, len(names))
	for _, name := range names {
		kind := events.Kind(strings.TrimSpace(name))
		if !valid[kind] {
			return nil, fmt.Errorf("unknown event kind %q", name)
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// kindNames renders kinds for logging
func kindNames(kinds []events.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

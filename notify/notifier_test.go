package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
)

func baseNotifyConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		Enabled:     true,
		WebhookURL:  url,
		Secret:      "hook-secret",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// hookRecorder captures webhook requests for inspection.
type hookRecorder struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  [][]byte
}

func (h *hookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.headers = append(h.headers, r.Header.Clone())
		h.bodies = append(h.bodies, body)
		h.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (h *hookRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bodies)
}

func (h *hookRecorder) request(i int) (http.Header, []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.headers[i], h.bodies[i]
}

func TestNewValidation(t *testing.T) {
	bus := events.NewBus(16, 4)
	logger := zap.NewNop()

	t.Run("NoURL", func(t *testing.T) {
		cfg := baseNotifyConfig("")

		_, err := New(cfg, bus, logger)
		assert.Error(t, err)
	})

	t.Run("BadScheme", func(t *testing.T) {
		cfg := baseNotifyConfig("ftp://hooks.example.com")

		_, err := New(cfg, bus, logger)
		assert.Error(t, err)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		cfg := baseNotifyConfig("https://hooks.example.com/launchpad")
		cfg.Kinds = []string{"token_created", "token_burned"}

		_, err := New(cfg, bus, logger)
		assert.Error(t, err)
	})

	t.Run("DefaultKinds", func(t *testing.T) {
		cfg := baseNotifyConfig("https://hooks.example.com/launchpad")

		n, err := New(cfg, bus, logger)
		require.NoError(t, err)
		assert.Equal(t, []events.Kind{events.KindTokenCreated, events.KindTokenGraduated}, n.kinds)
	})

	t.Run("DedupedKinds", func(t *testing.T) {
		cfg := baseNotifyConfig("https://hooks.example.com/launchpad")
		cfg.Kinds = []string{"token_bought", " token_sold ", "token_bought"}

		n, err := New(cfg, bus, logger)
		require.NoError(t, err)
		assert.Equal(t, []events.Kind{events.KindTokenBought, events.KindTokenSold}, n.kinds)
	})

	t.Run("ZeroTimingsGetDefaults", func(t *testing.T) {
		cfg := baseNotifyConfig("https://hooks.example.com/launchpad")
		cfg.Timeout = 0
		cfg.MaxAttempts = 0
		cfg.RetryDelay = 0

		n, err := New(cfg, bus, logger)
		require.NoError(t, err)
		assert.Equal(t, constants.DefaultNotifyTimeout, n.config.Timeout)
		assert.Equal(t, constants.DefaultNotifyMaxAttempts, n.config.MaxAttempts)
		assert.Equal(t, constants.DefaultNotifyRetryDelay, n.config.RetryDelay)
	})
}

func TestNotifierDeliversSignedEvents(t *testing.T) {
	rec := &hookRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	bus := events.NewBus(64, 8)
	go bus.Run()
	defer bus.Stop()

	cfg := baseNotifyConfig(srv.URL)
	n, err := New(cfg, bus, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 })

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	creator := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	createdHash := common.HexToHash("0x01")

	require.True(t, bus.Publish(events.NewProcessed(&events.TokenCreated{
		Address: token,
		Creator: creator,
		Name:    "Moon Token",
		Symbol:  "MOON",
		Hash:    createdHash,
		Number:  100,
		Time:    occurred,
	})))
	waitFor(t, func() bool { return rec.count() == 1 })

	header, body := rec.request(0)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "Launchpad-Webhook/1.0", header.Get("User-Agent"))
	assert.Equal(t, events.ProcessedID(events.KindTokenCreated, createdHash), header.Get("X-Webhook-ID"))
	assert.Equal(t, string(events.KindTokenCreated), header.Get("X-Event-Kind"))
	assert.True(t, VerifySignature(body, header.Get(signatureHeader), cfg.Secret),
		"signature must verify against the body")

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, string(events.KindTokenCreated), env.Kind)
	_, err = time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)
	require.NotNil(t, env.Data)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", env.Data.Token)
	assert.Equal(t, "Moon Token", env.Data.Name)
	assert.Equal(t, "MOON", env.Data.Symbol)
	assert.Equal(t, uint64(100), env.Data.Block)
	assert.Equal(t, occurred.UnixMilli(), env.Data.OccurredAt)

	// Default kinds exclude trades: the buy is filtered out, so the next
	// request the endpoint sees is the graduation.
	require.True(t, bus.Publish(events.NewProcessed(&events.TokenBought{
		Address:     token,
		Buyer:       creator,
		BNBAmount:   common.Big1,
		TokenAmount: common.Big2,
		Hash:        common.HexToHash("0x02"),
		Number:      101,
		Time:        occurred.Add(time.Minute),
	})))
	require.True(t, bus.Publish(events.NewProcessed(&events.TokenGraduated{
		Address: token,
		Hash:    common.HexToHash("0x03"),
		Number:  102,
		Time:    occurred.Add(2 * time.Minute),
	})))
	waitFor(t, func() bool { return rec.count() == 2 })

	_, body = rec.request(1)
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, string(events.KindTokenGraduated), env.Kind)
	assert.Empty(t, env.Data.Owner)

	delivered, failed := n.Stats()
	assert.Equal(t, uint64(2), delivered)
	assert.Equal(t, uint64(0), failed)

	n.Stop()
	waitFor(t, func() bool { return bus.SubscriberCount() == 0 })
}

func TestNotifierRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := events.NewBus(64, 8)
	go bus.Run()
	defer bus.Stop()

	n, err := New(baseNotifyConfig(srv.URL), bus, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 })

	require.True(t, bus.Publish(events.NewProcessed(&events.TokenGraduated{
		Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Hash:    common.HexToHash("0x04"),
		Number:  200,
		Time:    time.Now(),
	})))

	waitFor(t, func() bool {
		delivered, _ := n.Stats()
		return delivered == 1
	})
	assert.Equal(t, int32(3), calls.Load())

	_, failed := n.Stats()
	assert.Equal(t, uint64(0), failed)

	n.Stop()
}

func TestNotifierCountsExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bus := events.NewBus(64, 8)
	go bus.Run()
	defer bus.Stop()

	cfg := baseNotifyConfig(srv.URL)
	cfg.MaxAttempts = 2
	cfg.RetryDelay = 5 * time.Millisecond

	n, err := New(cfg, bus, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, n.Start())
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 })

	require.True(t, bus.Publish(events.NewProcessed(&events.TokenCreated{
		Address: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Creator: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Name:    "Dud",
		Symbol:  "DUD",
		Hash:    common.HexToHash("0x05"),
		Number:  300,
		Time:    time.Now(),
	})))

	waitFor(t, func() bool {
		_, failed := n.Stats()
		return failed == 1
	})
	assert.Equal(t, int32(2), calls.Load())

	delivered, _ := n.Stats()
	assert.Equal(t, uint64(0), delivered)

	n.Stop()
}

func TestNotifierStopWithoutStart(t *testing.T) {
	bus := events.NewBus(16, 4)

	n, err := New(baseNotifyConfig("https://hooks.example.com/launchpad"), bus, zap.NewNop())
	require.NoError(t, err)

	// Must not panic or hang.
	n.Stop()
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"token_created:0xabc"}`)
	sig := "sha256=" + signBody(body, "secret")

	assert.True(t, VerifySignature(body, sig, "secret"))
	assert.True(t, VerifySignature(body, signBody(body, "secret"), "secret"),
		"prefix is optional")
	assert.False(t, VerifySignature(body, sig, "other-secret"))
	assert.False(t, VerifySignature([]byte("tampered"), sig, "secret"))
	assert.False(t, VerifySignature(body, "sha256=zznothex", "secret"))
}

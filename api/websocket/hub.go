package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/0xmhha/launchpad-go/cache"
	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/0xmhha/launchpad-go/storage"
	"github.com/0xmhha/launchpad-go/watchlist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrHubFull rejects connections once the live-connection ceiling is hit
var ErrHubFull = errors.New("connection ceiling reached")

// hubSubscriptionID names the hub's subscription on the event bus
const hubSubscriptionID events.SubscriptionID = "websocket-hub"

// busChannelSize bounds the hub's event feed from the bus
const busChannelSize = 256

// readQueryTimeout bounds the storage work done for a single client frame
const readQueryTimeout = 5 * time.Second

// EventStream is the processed-event feed the hub fans out.
// *events.Bus satisfies it.
type EventStream interface {
	Subscribe(id events.SubscriptionID, kinds []events.Kind, filter *events.Filter, channelSize int) *events.Subscription
	Unsubscribe(id events.SubscriptionID)
}

// TokenListeners reference-counts per-token ledger subscriptions; the hub
// acquires one per new token subscription and releases it when the
// subscription goes away. *ingest.EntityListeners satisfies it.
type TokenListeners interface {
	Acquire(token common.Address) error
	Release(token common.Address)
}

// Deps are the hub's collaborator seams. Any of them may be nil: a nil
// Registry gets a fresh one, any other nil degrades the matching feature.
type Deps struct {
	Stream     EventStream
	Registry   *Registry
	Listeners  TokenListeners
	Verifier   *Verifier
	Reader     storage.Reader
	Cache      cache.Cache
	Watchlists *watchlist.Service
}

// Snapshot is the hub's live state summary for diagnostics endpoints
type Snapshot struct {
	Connections    int `json:"connections"`
	MaxConnections int `json:"maxConnections"`
	Channels       int `json:"channels"`
	Subscriptions  int `json:"subscriptions"`
}

// Hub owns every live connection and routes processed events to the
// connections subscribed to them
type Hub struct {
	registry   *Registry
	listeners  TokenListeners
	verifier   *Verifier
	reader     storage.Reader
	cache      cache.Cache
	stream     EventStream
	watchlists *watchlist.Service

	maxConns  int
	pingEvery time.Duration
	sendBuf   int

	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger  *zap.Logger
	metrics *Metrics
}

// NewHub creates the distribution hub. Run starts it.
func NewHub(cfg config.HubConfig, deps Deps, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = constants.DefaultMaxConnections
	}
	pingEvery := cfg.PingInterval
	if pingEvery <= 0 {
		pingEvery = constants.DefaultPingInterval
	}

	return &Hub{
		registry:   registry,
		listeners:  deps.Listeners,
		verifier:   deps.Verifier,
		reader:     deps.Reader,
		cache:      deps.Cache,
		stream:     deps.Stream,
		watchlists: deps.Watchlists,
		maxConns:   maxConns,
		pingEvery:  pingEvery,
		sendBuf:    constants.DefaultSendBuffer,
		clients:    make(map[string]*Client),
		byUser:     make(map[string]map[string]*Client),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "websocket-hub")),
	}
}

// SetMetrics enables Prometheus metrics for the hub
// Optional - if not called, metrics are not collected
func (h *Hub) SetMetrics(metrics *Metrics) {
	h.metrics = metrics
}

// Registry exposes the subscription registry
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run consumes the event stream and sweeps liveness. It blocks until
// Stop is called and should run in a goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	var feed <-chan *events.Processed
	if h.stream != nil {
		sub := h.stream.Subscribe(hubSubscriptionID, events.AllKinds(), nil, busChannelSize)
		feed = sub.Channel
		defer h.stream.Unsubscribe(hubSubscriptionID)
	}

	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			h.closeAll()
			return
		case pr, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			h.Push(pr)
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Stop shuts the hub down, closing every connection with 1001
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	<-h.done
}

// ClientCount returns the number of live connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Snapshot returns connection and subscription counts
func (h *Hub) Snapshot() Snapshot {
	channels, subs := h.registry.Counts()
	return Snapshot{
		Connections:    h.ClientCount(),
		MaxConnections: h.maxConns,
		Channels:       channels,
		Subscriptions:  subs,
	}
}

// add registers a connection, enforcing the ceiling
func (h *Hub) add(c *Client) error {
	h.mu.Lock()
	if len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		return ErrHubFull
	}
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordConnected()
		h.metrics.UpdateConnections(total)
	}
	h.logger.Info("connection opened",
		zap.String("conn_id", c.id),
		zap.Int("total", total))
	return nil
}

// drop removes a connection from the hub and registry, releases its token
// listeners, and closes the socket. Every disconnect path funnels here;
// repeated calls are no-ops.
func (h *Hub) drop(c *Client, code int, reason string) {
	h.mu.Lock()
	_, registered := h.clients[c.id]
	delete(h.clients, c.id)
	if uid := c.UserID(); uid != "" {
		h.forgetUserConnLocked(uid, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if registered {
		keys := h.registry.RemoveConnection(c.id)
		h.releaseTokenKeys(keys)
		if h.metrics != nil {
			h.metrics.UpdateConnections(total)
			h.metrics.RemoveSubscriptions(len(keys))
		}
		h.logger.Info("connection closed",
			zap.String("conn_id", c.id),
			zap.Int("code", code),
			zap.String("reason", reason),
			zap.Int("total", total))
	}
	c.close(code, reason)
}

// closeAll disconnects every client on shutdown
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.drop(c, websocket.CloseGoingAway, "server shutting down")
	}
	h.logger.Info("hub stopped", zap.Int("disconnected", len(clients)))
}

// sweep closes connections that missed two ping intervals
func (h *Hub) sweep() {
	cutoff := 2 * h.pingEvery
	now := time.Now()

	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if now.Sub(time.Unix(0, c.lastPong.Load())) > cutoff {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		if h.metrics != nil {
			h.metrics.RecordLivenessClose()
		}
		h.logger.Warn("closing unresponsive connection",
			zap.String("conn_id", c.id))
		h.drop(c, CloseHeartbeatTimeout, "heartbeat timeout")
	}
}

// Push routes one processed event to every matching subscription and to
// the authenticated connections of every user watching the token. Sends
// never block; a connection that cannot keep up is dropped through the
// liveness cleanup path.
func (h *Hub) Push(pr *events.Processed) {
	matches := h.registry.Match(pr.Token, pr.Owner)
	var watchers []string
	if h.watchlists != nil {
		watchers = h.watchlists.WatchersOf(pr.Token)
	}
	if len(matches) == 0 && len(watchers) == 0 {
		return
	}

	payload := NewEventPayload(pr)
	var stale []*Client
	for _, m := range matches {
		frameType := pushFrameType(m.Key.Kind)
		frame, err := marshalFrame(frameType, payload)
		if err != nil {
			h.logger.Error("failed to marshal push frame", zap.Error(err))
			continue
		}

		for _, connID := range m.Conns {
			h.mu.RLock()
			c, ok := h.clients[connID]
			h.mu.RUnlock()
			if !ok {
				continue
			}
			if m.Key.Kind.ownerScoped() && c.UserID() != m.Key.ID {
				continue
			}

			if c.enqueue(frame) {
				if h.metrics != nil {
					h.metrics.RecordPush(frameType)
				}
			} else {
				if h.metrics != nil {
					h.metrics.RecordSendDropped()
				}
				stale = append(stale, c)
			}
		}
	}

	stale = h.pushToWatchers(watchers, payload, stale)

	for _, c := range stale {
		h.logger.Warn("dropping connection with full send buffer",
			zap.String("conn_id", c.id))
		h.drop(c, CloseHeartbeatTimeout, "slow consumer")
	}
}

// pushToWatchers delivers a watchlist_event frame to each watcher's live
// authenticated connections. One frame serves every watcher; drop is
// idempotent so a connection already marked stale by the subscription
// fan-out is fine to mark again.
func (h *Hub) pushToWatchers(watchers []string, payload *EventPayload, stale []*Client) []*Client {
	if len(watchers) == 0 {
		return stale
	}
	frame, err := marshalFrame(FrameWatchlistEvent, payload)
	if err != nil {
		h.logger.Error("failed to marshal watchlist frame", zap.Error(err))
		return stale
	}

	for _, userID := range watchers {
		h.mu.RLock()
		conns := make([]*Client, 0, len(h.byUser[userID]))
		for _, c := range h.byUser[userID] {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		for _, c := range conns {
			if c.enqueue(frame) {
				if h.metrics != nil {
					h.metrics.RecordPush(FrameWatchlistEvent)
				}
			} else {
				if h.metrics != nil {
					h.metrics.RecordSendDropped()
				}
				stale = append(stale, c)
			}
		}
	}
	return stale
}

// welcomeFrame builds the frame sent on accept
func (h *Hub) welcomeFrame(c *Client) ([]byte, error) {
	caps := []string{
		FrameSubscribe,
		FrameUnsubscribe,
		FramePing,
		FrameAuthenticate,
		FrameGetTokenInfo,
		FrameGetMarketData,
	}
	if h.watchlists != nil {
		caps = append(caps, FrameWatchlistAdd, FrameWatchlistRemove, FrameGetWatchlist)
	}
	return marshalFrame(FrameWelcome, WelcomePayload{
		ConnectionID: c.id,
		Capabilities: caps,
	})
}

// handleFrame dispatches one inbound frame. Malformed and unknown frames
// get an error reply; the connection stays open.
func (h *Hub) handleFrame(c *Client, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.recordReceived("invalid")
		h.sendError(c, "invalid frame")
		return
	}

	switch f.Type {
	case FramePing:
		h.recordReceived(f.Type)
		h.send(c, FramePong, PongPayload{Timestamp: unixMS(time.Now())})
	case FrameSubscribe:
		h.recordReceived(f.Type)
		h.handleSubscribe(c, f.Data)
	case FrameUnsubscribe:
		h.recordReceived(f.Type)
		h.handleUnsubscribe(c, f.Data)
	case FrameAuthenticate:
		h.recordReceived(f.Type)
		h.handleAuthenticate(c, f.Data)
	case FrameGetTokenInfo:
		h.recordReceived(f.Type)
		h.handleTokenInfo(c, f.Data)
	case FrameGetMarketData:
		h.recordReceived(f.Type)
		h.handleMarketData(c)
	case FrameWatchlistAdd:
		h.recordReceived(f.Type)
		h.handleWatchlistAdd(c, f.Data)
	case FrameWatchlistRemove:
		h.recordReceived(f.Type)
		h.handleWatchlistRemove(c, f.Data)
	case FrameGetWatchlist:
		h.recordReceived(f.Type)
		h.handleGetWatchlist(c)
	default:
		h.recordReceived("unknown")
		h.sendError(c, "unknown message type: "+f.Type)
	}
}

func (h *Hub) handleSubscribe(c *Client, data json.RawMessage) {
	var req SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(c, "invalid subscribe request")
		return
	}
	id, ok := h.validateChannel(c, req.Type, req.ID)
	if !ok {
		return
	}

	key, added := h.registry.Subscribe(c.id, req.Type, id)
	if added && req.Type == SubToken && h.listeners != nil {
		if err := h.listeners.Acquire(common.HexToAddress(id)); err != nil {
			h.registry.Unsubscribe(c.id, req.Type, id)
			h.logger.Error("failed to open token listener",
				zap.String("token", id),
				zap.Error(err))
			h.sendError(c, "subscription unavailable")
			return
		}
	}

	if added && h.metrics != nil {
		h.metrics.AddSubscription()
	}
	h.send(c, FrameSubscribed, SubscribedPayload{SubscriptionID: key.String()})
	h.logger.Debug("subscribed",
		zap.String("conn_id", c.id),
		zap.String("subscription", key.String()))
}

func (h *Hub) handleUnsubscribe(c *Client, data json.RawMessage) {
	var req UnsubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(c, "invalid unsubscribe request")
		return
	}
	id, ok := h.validateChannel(c, req.Type, req.ID)
	if !ok {
		return
	}

	key, removed := h.registry.Unsubscribe(c.id, req.Type, id)
	if removed {
		h.releaseTokenKeys([]Key{key})
		if h.metrics != nil {
			h.metrics.RemoveSubscriptions(1)
		}
	}
	h.send(c, FrameUnsubscribed, UnsubscribedPayload{SubscriptionID: key.String()})
	h.logger.Debug("unsubscribed",
		zap.String("conn_id", c.id),
		zap.String("subscription", key.String()))
}

// validateChannel checks the kind/id pair of a subscribe or unsubscribe
// request, normalizing the market id
func (h *Hub) validateChannel(c *Client, kind SubKind, id string) (string, bool) {
	if !kind.Valid() {
		h.sendError(c, "unknown subscription type: "+string(kind))
		return "", false
	}
	switch kind {
	case SubToken:
		if !common.IsHexAddress(id) {
			h.sendError(c, "invalid token address")
			return "", false
		}
	case SubMarket:
		if id == "" {
			id = MarketID
		}
		if id != MarketID {
			h.sendError(c, `market subscriptions use id "global"`)
			return "", false
		}
	case SubUser, SubPortfolio:
		if id == "" {
			h.sendError(c, "missing user id")
			return "", false
		}
	}
	return id, true
}

func (h *Hub) handleAuthenticate(c *Client, data json.RawMessage) {
	var req AuthenticateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(c, "invalid authenticate request")
		return
	}
	if h.verifier == nil || !h.verifier.Verify(req.UserID, req.Token) {
		if h.metrics != nil {
			h.metrics.RecordAuthFailure()
		}
		h.sendError(c, "authentication failed")
		return
	}

	userID := lowerHex(req.UserID)
	prev := c.UserID()
	c.setUserID(userID)

	// Re-authentication moves the connection between user buckets. A
	// connection already dropped from clients is not re-indexed.
	h.mu.Lock()
	if prev != "" && prev != userID {
		h.forgetUserConnLocked(prev, c.id)
	}
	if _, live := h.clients[c.id]; live {
		conns := h.byUser[userID]
		if conns == nil {
			conns = make(map[string]*Client)
			h.byUser[userID] = conns
		}
		conns[c.id] = c
	}
	h.mu.Unlock()

	h.send(c, FrameAuthenticated, AuthenticatedPayload{UserID: userID})
	h.logger.Info("connection authenticated",
		zap.String("conn_id", c.id),
		zap.String("user_id", userID))
}

func (h *Hub) handleTokenInfo(c *Client, data json.RawMessage) {
	var req TokenInfoRequest
	if err := json.Unmarshal(data, &req); err != nil || !common.IsHexAddress(req.Address) {
		h.sendError(c, "invalid token address")
		return
	}
	addr := common.HexToAddress(req.Address)

	ctx, cancel := context.WithTimeout(context.Background(), readQueryTimeout)
	defer cancel()

	key := cache.TokenKey(addr)
	if h.cache != nil {
		if raw, ok := h.cache.Get(ctx, key); ok {
			h.sendRaw(c, FrameTokenInfo, raw)
			return
		}
	}
	if h.reader == nil {
		h.sendError(c, "token info unavailable")
		return
	}

	rec, err := h.reader.GetToken(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		h.sendError(c, "token not found")
		return
	}
	if err != nil {
		h.logger.Error("token info read failed",
			zap.String("token", addr.Hex()),
			zap.Error(err))
		h.sendError(c, "token info unavailable")
		return
	}

	raw, err := json.Marshal(NewTokenInfoPayload(rec))
	if err != nil {
		h.sendError(c, "token info unavailable")
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, key, raw, 0)
	}
	h.sendRaw(c, FrameTokenInfo, raw)
}

func (h *Hub) handleMarketData(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), readQueryTimeout)
	defer cancel()

	key := cache.MarketStatsKey()
	if h.cache != nil {
		if raw, ok := h.cache.Get(ctx, key); ok {
			h.sendRaw(c, FrameMarketData, raw)
			return
		}
	}
	if h.reader == nil {
		h.sendError(c, "market data unavailable")
		return
	}

	rec, err := h.reader.MarketStats(ctx)
	if err != nil {
		h.logger.Error("market stats read failed", zap.Error(err))
		h.sendError(c, "market data unavailable")
		return
	}

	raw, err := json.Marshal(NewMarketDataPayload(rec))
	if err != nil {
		h.sendError(c, "market data unavailable")
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, key, raw, 0)
	}
	h.sendRaw(c, FrameMarketData, raw)
}

// watchlistSession gates watchlist frames on an enabled service and an
// authenticated connection
func (h *Hub) watchlistSession(c *Client) (string, bool) {
	if h.watchlists == nil {
		h.sendError(c, "watchlists unavailable")
		return "", false
	}
	userID := c.UserID()
	if userID == "" {
		h.sendError(c, "authentication required")
		return "", false
	}
	return userID, true
}

func (h *Hub) handleWatchlistAdd(c *Client, data json.RawMessage) {
	userID, ok := h.watchlistSession(c)
	if !ok {
		return
	}
	var req WatchlistAddRequest
	if err := json.Unmarshal(data, &req); err != nil || !common.IsHexAddress(req.Address) {
		h.sendError(c, "invalid token address")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), readQueryTimeout)
	defer cancel()

	_, err := h.watchlists.Add(ctx, userID, common.HexToAddress(req.Address), req.Label)
	if errors.Is(err, watchlist.ErrLimitReached) {
		h.sendError(c, "watchlist limit reached")
		return
	}
	if err != nil {
		h.logger.Error("watchlist add failed",
			zap.String("user_id", userID),
			zap.Error(err))
		h.sendError(c, "watchlist unavailable")
		return
	}
	h.sendWatchlist(c, userID)
}

func (h *Hub) handleWatchlistRemove(c *Client, data json.RawMessage) {
	userID, ok := h.watchlistSession(c)
	if !ok {
		return
	}
	var req WatchlistRemoveRequest
	if err := json.Unmarshal(data, &req); err != nil || !common.IsHexAddress(req.Address) {
		h.sendError(c, "invalid token address")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), readQueryTimeout)
	defer cancel()

	if _, err := h.watchlists.Remove(ctx, userID, common.HexToAddress(req.Address)); err != nil {
		h.logger.Error("watchlist remove failed",
			zap.String("user_id", userID),
			zap.Error(err))
		h.sendError(c, "watchlist unavailable")
		return
	}
	h.sendWatchlist(c, userID)
}

func (h *Hub) handleGetWatchlist(c *Client) {
	userID, ok := h.watchlistSession(c)
	if !ok {
		return
	}
	h.sendWatchlist(c, userID)
}

// sendWatchlist replies with the user's full current watchlist. Mutations
// are acknowledged the same way, so the client always holds the list the
// server holds.
func (h *Hub) sendWatchlist(c *Client, userID string) {
	entries := h.watchlists.Entries(userID)
	payload := WatchlistPayload{Tokens: make([]WatchlistEntryPayload, 0, len(entries))}
	for _, e := range entries {
		payload.Tokens = append(payload.Tokens, WatchlistEntryPayload{
			Address: lowerHex(e.Token.Hex()),
			Label:   e.Label,
			AddedAt: unixMS(e.AddedAt),
		})
	}
	h.send(c, FrameWatchlist, payload)
}

// forgetUserConnLocked removes one connection from a user's bucket.
// Caller holds h.mu.
func (h *Hub) forgetUserConnLocked(userID, connID string) {
	conns := h.byUser[userID]
	if conns == nil {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.byUser, userID)
	}
}

// releaseTokenKeys releases the per-token ledger listener behind every
// token key in keys
func (h *Hub) releaseTokenKeys(keys []Key) {
	if h.listeners == nil {
		return
	}
	for _, key := range keys {
		if key.Kind != SubToken || !common.IsHexAddress(key.ID) {
			continue
		}
		h.listeners.Release(common.HexToAddress(key.ID))
	}
}

// send marshals a payload into a frame and enqueues it
func (h *Hub) send(c *Client, frameType string, payload any) {
	frame, err := marshalFrame(frameType, payload)
	if err != nil {
		h.logger.Error("failed to marshal frame",
			zap.String("type", frameType),
			zap.Error(err))
		return
	}
	if !c.enqueue(frame) && h.metrics != nil {
		h.metrics.RecordSendDropped()
	}
}

// sendRaw enqueues a frame around an already-marshaled payload
func (h *Hub) sendRaw(c *Client, frameType string, data json.RawMessage) {
	frame, err := json.Marshal(Frame{
		Type:      frameType,
		Data:      data,
		Timestamp: unixMS(time.Now()),
	})
	if err != nil {
		return
	}
	if !c.enqueue(frame) && h.metrics != nil {
		h.metrics.RecordSendDropped()
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.send(c, FrameError, ErrorPayload{Message: message})
}

func (h *Hub) recordReceived(frameType string) {
	if h.metrics != nil {
		h.metrics.RecordReceived(frameType)
	}
}

package websocket

import (
	"encoding/json"
	"time"
)

// Frame is the wire envelope. Every message in either direction is one
// JSON object of this shape; Timestamp is set on server frames only.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Client frame types
const (
	FramePing            = "ping"
	FrameSubscribe       = "subscribe"
	FrameUnsubscribe     = "unsubscribe"
	FrameAuthenticate    = "authenticate"
	FrameGetTokenInfo    = "get_token_info"
	FrameGetMarketData   = "get_market_data"
	FrameWatchlistAdd    = "watchlist_add"
	FrameWatchlistRemove = "watchlist_remove"
	FrameGetWatchlist    = "get_watchlist"
)

// Server frame types
const (
	FramePong            = "pong"
	FrameWelcome         = "welcome"
	FrameSubscribed      = "subscribed"
	FrameUnsubscribed    = "unsubscribed"
	FrameAuthenticated   = "authenticated"
	FrameTokenEvent      = "token_event"
	FrameMarketUpdate    = "market_update"
	FramePortfolioUpdate = "portfolio_update"
	FrameTokenInfo       = "token_info"
	FrameMarketData      = "market_data"
	FrameWatchlist       = "watchlist"
	FrameWatchlistEvent  = "watchlist_event"
	FrameError           = "error"
)

// CloseHeartbeatTimeout is the application close code sent when a
// connection misses two ping intervals or stops draining its send buffer.
// The standard codes 1000 (normal), 1013 (ceiling reached) and 1001
// (server shutdown) come from the websocket library.
const CloseHeartbeatTimeout = 4000

// SubscribeRequest is the payload of a subscribe frame
type SubscribeRequest struct {
	Type   SubKind         `json:"type"`
	ID     string          `json:"id"`
	Filter json.RawMessage `json:"filter,omitempty"`
}

// UnsubscribeRequest is the payload of an unsubscribe frame
type UnsubscribeRequest struct {
	Type SubKind `json:"type"`
	ID   string  `json:"id"`
}

// AuthenticateRequest carries a session token minted by the account service
type AuthenticateRequest struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// TokenInfoRequest is the payload of a get_token_info frame
type TokenInfoRequest struct {
	Address string `json:"address"`
}

// WatchlistAddRequest is the payload of a watchlist_add frame
type WatchlistAddRequest struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// WatchlistRemoveRequest is the payload of a watchlist_remove frame
type WatchlistRemoveRequest struct {
	Address string `json:"address"`
}

// WelcomePayload announces the connection id and what the server speaks
type WelcomePayload struct {
	ConnectionID string   `json:"connectionId"`
	Capabilities []string `json:"capabilities"`
}

// SubscribedPayload acknowledges a subscribe frame
type SubscribedPayload struct {
	SubscriptionID string `json:"subscriptionId"`
}

// UnsubscribedPayload acknowledges an unsubscribe frame
type UnsubscribedPayload struct {
	SubscriptionID string `json:"subscriptionId"`
}

// AuthenticatedPayload acknowledges a successful authenticate frame
type AuthenticatedPayload struct {
	UserID string `json:"userId"`
}

// PongPayload answers a client ping
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// WatchlistEntryPayload is one watched token in a watchlist frame
type WatchlistEntryPayload struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
	AddedAt int64  `json:"addedAt"`
}

// WatchlistPayload answers get_watchlist and acknowledges watchlist
// mutations with the full current list
type WatchlistPayload struct {
	Tokens []WatchlistEntryPayload `json:"tokens"`
}

// ErrorPayload carries a human-readable failure reason
type ErrorPayload struct {
	Message string `json:"message"`
}

// unixMS is the wire representation of a point in time
func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// marshalFrame builds a complete server frame around the given payload
func marshalFrame(frameType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{
		Type:      frameType,
		Data:      data,
		Timestamp: unixMS(time.Now()),
	})
}

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum control-frame size allowed from peer
	maxMessageSize = 4096
)

// Client is one live connection. It only moves bytes; frame semantics
// live on the Hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// lastPong is the unix-nano time of the latest pong (or connect);
	// the hub's liveness sweep reads it
	lastPong atomic.Int64

	mu     sync.RWMutex
	userID string

	logger *zap.Logger
}

func newClient(id string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	c := &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.sendBuf),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn_id", id)),
	}
	c.lastPong.Store(time.Now().UnixNano())
	return c
}

// ID returns the connection id assigned at accept
func (c *Client) ID() string {
	return c.id
}

// UserID returns the authenticated user id, or "" before authentication
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// enqueue hands a frame to the write pump without blocking. False means
// the buffer is full or the connection is closing.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close sends the close frame once and tears the connection down.
// Safe to call from any goroutine; later calls are no-ops.
func (c *Client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump pumps frames from the connection to the hub. It runs in its
// own goroutine and owns all reads.
func (c *Client) readPump() {
	defer c.hub.drop(c, websocket.CloseNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.hub.handleFrame(c, message)
	}
}

// writePump pumps frames from the send buffer to the connection and
// pings on the liveness cadence. It runs in its own goroutine and owns
// all data writes.
func (c *Client) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

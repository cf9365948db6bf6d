package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now (should be configured in production)
		return true
	},
}

// Server upgrades HTTP requests into hub connections
type Server struct {
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a websocket server on an already-constructed hub.
// The hub's Run loop is owned by the caller.
func NewServer(hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:    hub,
		logger: logger.With(zap.String("component", "websocket-server")),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), s.hub, conn, s.logger)
	if err := s.hub.add(client); err != nil {
		if s.hub.metrics != nil {
			s.hub.metrics.RecordRejected()
		}
		s.logger.Warn("rejecting connection at ceiling",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("max_connections", s.hub.maxConns))
		client.close(websocket.CloseTryAgainLater, "connection ceiling reached")
		return
	}

	if frame, err := s.hub.welcomeFrame(client); err == nil {
		client.enqueue(frame)
	}

	go client.writePump(s.hub.pingEvery)
	go client.readPump()

	s.logger.Info("new websocket connection",
		zap.String("conn_id", client.id),
		zap.String("remote_addr", r.RemoteAddr))
}

// Hub returns the underlying hub
func (s *Server) Hub() *Hub {
	return s.hub
}

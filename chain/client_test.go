package chain

import (
	"testing"
	"time"

	"github.com/0xmhha/launchpad-go/internal/config"
	"go.uber.org/zap"
)

// Client must satisfy the transport seam the source is built on
var _ LogSubscriber = (*Client)(nil)

func TestNewClient_EmptyEndpoint(t *testing.T) {
	_, err := NewClient(config.ChainConfig{}, zap.NewNop())
	if err == nil {
		t.Fatal("NewClient() error = nil, want empty-endpoint error")
	}
}

func TestNewClient_UnreachableEndpoint(t *testing.T) {
	cfg := config.ChainConfig{
		Endpoint: "ws://127.0.0.1:1",
		Timeout:  500 * time.Millisecond,
	}
	_, err := NewClient(cfg, zap.NewNop())
	if err == nil {
		t.Fatal("NewClient() error = nil, want connection error")
	}
}

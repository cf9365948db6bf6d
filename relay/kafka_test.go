package relay

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/launchpad-go/internal/config"
)

func baseRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		Topic:        "launchpad.events",
		ClientID:     "launchpad",
		BatchSize:    100,
		Linger:       100 * time.Millisecond,
		RequiredAcks: 1,
	}
}

func TestCodecFor(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		codec, err := codecFor("")
		require.NoError(t, err)
		assert.Nil(t, codec)
	})

	for _, name := range []string{"gzip", "snappy", "lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			codec, err := codecFor(name)
			require.NoError(t, err)
			require.NotNil(t, codec)
			assert.Equal(t, name, codec.Name())
		})
	}

	t.Run("Unsupported", func(t *testing.T) {
		codec, err := codecFor("brotli")
		assert.Error(t, err)
		assert.Nil(t, codec)
		assert.Contains(t, err.Error(), "unsupported compression")
	})
}

func TestAcksFor(t *testing.T) {
	assert.Equal(t, kafka.RequireNone, acksFor(0))
	assert.Equal(t, kafka.RequireOne, acksFor(1))
	assert.Equal(t, kafka.RequireAll, acksFor(-1))
	assert.Equal(t, kafka.RequireAll, acksFor(7))
}

func TestSASLMechanismFor(t *testing.T) {
	for _, name := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		t.Run(name, func(t *testing.T) {
			cfg := baseRelayConfig()
			cfg.SASLMechanism = name
			cfg.SASLUsername = "user"
			cfg.SASLPassword = "pass"

			mechanism, err := saslMechanismFor(cfg)
			require.NoError(t, err)
			assert.NotNil(t, mechanism)
		})
	}

	t.Run("Unsupported", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.SASLMechanism = "UNKNOWN"

		mechanism, err := saslMechanismFor(cfg)
		assert.Error(t, err)
		assert.Nil(t, mechanism)
		assert.Contains(t, err.Error(), "unsupported SASL mechanism")
	})
}

func TestTransportFor(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.ClientID = ""

		transport, err := transportFor(cfg)
		require.NoError(t, err)
		assert.Nil(t, transport)
	})

	t.Run("ClientID", func(t *testing.T) {
		transport, err := transportFor(baseRelayConfig())
		require.NoError(t, err)
		require.NotNil(t, transport)
		assert.Equal(t, "launchpad", transport.ClientID)
		assert.Nil(t, transport.TLS)
		assert.Nil(t, transport.SASL)
	})

	t.Run("TLS", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.TLS = true

		transport, err := transportFor(cfg)
		require.NoError(t, err)
		require.NotNil(t, transport)
		assert.NotNil(t, transport.TLS)
	})

	t.Run("SASL", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.SASLMechanism = "PLAIN"
		cfg.SASLUsername = "user"
		cfg.SASLPassword = "pass"

		transport, err := transportFor(cfg)
		require.NoError(t, err)
		require.NotNil(t, transport)
		assert.NotNil(t, transport.SASL)
	})

	t.Run("SASLWithoutMechanism", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.SASLUsername = "user"
		cfg.SASLPassword = "pass"

		transport, err := transportFor(cfg)
		assert.Error(t, err)
		assert.Nil(t, transport)
	})
}

func TestNewWriter(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		writer, err := newWriter(baseRelayConfig())
		require.NoError(t, err)
		require.NotNil(t, writer)
		defer writer.Close()

		assert.Equal(t, "launchpad.events", writer.Topic)
		assert.Equal(t, kafka.RequireOne, writer.RequiredAcks)
		assert.True(t, writer.Async)
	})

	t.Run("BadCompression", func(t *testing.T) {
		cfg := baseRelayConfig()
		cfg.Compression = "brotli"

		writer, err := newWriter(cfg)
		assert.Error(t, err)
		assert.Nil(t, writer)
	})
}

package relay

import (
	"crypto/tls"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/0xmhha/launchpad-go/internal/config"
)

// newWriter builds the async Kafka writer. Hash balancing over the message
// key keeps each token's events on one partition.
func newWriter(cfg config.RelayConfig) (*kafka.Writer, error) {
	codec, err := codecFor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.Linger,
		Async:        true,
	}
	if codec != nil {
		writerConfig.CompressionCodec = codec
	}

	writer := kafka.NewWriter(writerConfig)
	writer.RequiredAcks = acksFor(cfg.RequiredAcks)

	transport, err := transportFor(cfg)
	if err != nil {
		writer.Close()
		return nil, err
	}
	if transport != nil {
		writer.Transport = transport
	}

	return writer, nil
}

// codecFor maps a configured compression name onto its codec. An empty name
// disables compression.
func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "":
		return nil, nil
	case "gzip":
		return &compress.GzipCodec, nil
	case "snappy":
		return &compress.SnappyCodec, nil
	case "lz4":
		return &compress.Lz4Codec, nil
	case "zstd":
		return &compress.ZstdCodec, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", name)
	}
}

// acksFor maps the configured ack level onto the writer's setting. Anything
// other than 0 or 1 requires acknowledgement from all replicas.
func acksFor(level int) kafka.RequiredAcks {
	switch level {
	case 0:
		return kafka.RequireNone
	case 1:
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

// saslMechanismFor creates the configured SASL mechanism.
func saslMechanismFor(cfg config.RelayConfig) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.SASLUsername,
			Password: cfg.SASLPassword,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}

// transportFor builds the writer transport carrying client identity, TLS
// and SASL credentials. Returns nil when the defaults suffice.
func transportFor(cfg config.RelayConfig) (*kafka.Transport, error) {
	var tlsConfig *tls.Config
	if cfg.TLS {
		tlsConfig = &tls.Config{}
	}

	if cfg.SASLUsername != "" && cfg.SASLPassword != "" {
		mechanism, err := saslMechanismFor(cfg)
		if err != nil {
			return nil, err
		}
		return &kafka.Transport{
			SASL:     mechanism,
			TLS:      tlsConfig,
			ClientID: cfg.ClientID,
		}, nil
	}

	if tlsConfig != nil || cfg.ClientID != "" {
		return &kafka.Transport{
			TLS:      tlsConfig,
			ClientID: cfg.ClientID,
		}, nil
	}

	return nil, nil
}

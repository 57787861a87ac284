package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsConn is the subset of *nats.Conn used by NATSPublisher.
type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

// NATSPublisher publishes JSON-encoded events to a NATS server.
type NATSPublisher struct {
	conn   natsConn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher connects to url. Subjects are published as prefix.subject
// when prefix is non-empty.
func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("utour-devbhoomi"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return newNATSPublisher(conn, prefix, logger), nil
}

func newNATSPublisher(conn natsConn, prefix string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}
	if err := p.conn.Publish(full, data); err != nil {
		p.logger.Error("publish event", zap.String("subject", full), zap.Error(err))
		return fmt.Errorf("publish %s: %w", full, err)
	}

	p.logger.Debug("event published", zap.String("subject", full))
	return nil
}

// Close implements Publisher.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("NATS connection closed")
	}
}

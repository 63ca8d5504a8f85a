package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "owera"

// NATSPublisher publishes JSON events to a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
	owned  bool
}

var _ Publisher = (*NATSPublisher)(nil)

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("owera"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close leaves it open.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: nc, prefix: prefix, logger: logger}
}

// Conn returns the underlying connection for subscribers.
func (p *NATSPublisher) Conn() *nats.Conn { return p.conn }

// Prefix returns the subject root.
func (p *NATSPublisher) Prefix() string { return p.prefix }

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.RunID == "" {
		return errors.New("event run id is required")
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.prefix, e.RunID, e.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Subscribe delivers every event of one run to ch until the returned
// subscription is unsubscribed.
func (p *NATSPublisher) Subscribe(runID string, ch chan *nats.Msg) (*nats.Subscription, error) {
	sub, err := p.conn.ChanSubscribe(RunWildcard(p.prefix, runID), ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe to run %s: %w", runID, err)
	}
	return sub, nil
}

// Decode parses a message published by Publish.
func Decode(msg *nats.Msg) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event on %s: %w", msg.Subject, err)
	}
	return e, nil
}

// Close flushes pending messages and closes an owned connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	err := p.conn.FlushTimeout(2 * time.Second)
	if p.owned {
		p.conn.Close()
	}
	return err
}

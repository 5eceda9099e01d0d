// Package events feeds domain events from the message bus into the webhook
// dispatcher.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"hookrelay/internal/model"
)

// Raiser is the dispatcher entry point used by the consumer.
type Raiser interface {
	Raise(orgID, eventType string, data any)
}

// Consumer subscribes to a NATS subject and raises every well-formed message
// as a webhook event. Malformed messages are logged and dropped.
type Consumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	raiser  Raiser
	logger  *slog.Logger
	subject string
}

// NewConsumer connects to NATS with automatic reconnection support.
func NewConsumer(url, subject string, r Raiser, logger *slog.Logger, opts ...nats.Option) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.Name("hookrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Consumer{conn: nc, raiser: r, logger: logger, subject: subject}, nil
}

// Start registers the subscription. Messages are handled on the NATS
// client's goroutine; Raise does not block on delivery.
func (c *Consumer) Start() error {
	sub, err := c.conn.Subscribe(c.subject, c.handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.subject, err)
	}
	// Flush so the subscription is registered on the server before returning.
	if err := c.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	c.sub = sub
	c.logger.Info("consuming events", "subject", c.subject)
	return nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	ev, err := Decode(msg.Data)
	if err != nil {
		c.logger.Warn("dropping event", "subject", msg.Subject, "err", err)
		return
	}
	c.raiser.Raise(ev.OrganizationID, ev.EventType, ev.Data)
}

// Decode parses and validates a bus message.
func Decode(data []byte) (model.EventMessage, error) {
	var ev model.EventMessage
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.EventMessage{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.OrganizationID == "" {
		return model.EventMessage{}, errors.New("organizationId is required")
	}
	if ev.EventType == "" {
		return model.EventMessage{}, errors.New("eventType is required")
	}
	if len(ev.Data) == 0 {
		ev.Data = json.RawMessage("null")
	}
	return ev, nil
}

// Close drains the subscription and closes the connection.
func (c *Consumer) Close(ctx context.Context) error {
	done := make(chan struct{})
	c.conn.SetClosedHandler(func(*nats.Conn) { close(done) })
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.conn.Close()
		return ctx.Err()
	}
}

// Publisher raises events onto the bus; used by producers and the CLI.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

func NewPublisher(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: nc, prefix: prefix}, nil
}

// Publish sends an event on <prefix>.<eventType>.
func (p *Publisher) Publish(ev model.EventMessage) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.conn.Publish(p.prefix+"."+ev.EventType, data); err != nil {
		return err
	}
	return p.conn.Flush()
}

func (p *Publisher) Close() { p.conn.Close() }

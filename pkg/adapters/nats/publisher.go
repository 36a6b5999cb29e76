// Package nats publishes orchestrator events to a NATS subject hierarchy.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/conductor/pkg/ports"
	"github.com/nats-io/nats.go"
)

const DefaultSubject = "conductor.events"

// Config configures the NATS connection.
type Config struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher implements ports.EventPublisher. Events are JSON encoded and
// published to "<subject>.<topic>".
type Publisher struct {
	conn    conn
	subject string
}

// NewPublisher connects to NATS.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("conductor"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewFromConn(nc, cfg.Subject), nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(nc *nats.Conn, subject string) *Publisher {
	return newPublisher(nc, subject)
}

func newPublisher(c conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: c, subject: subject}
}

// Publish implements ports.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject+"."+topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)

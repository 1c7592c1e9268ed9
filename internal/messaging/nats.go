// Package messaging publishes every persisted chat message to NATS so that
// external consumers (archivers, bots, search indexers) can follow the room.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Subject       string // messages go to <Subject>.<room>
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// FeedMessage is the JSON body published for each message.
type FeedMessage struct {
	ID      int64           `json:"id"`
	Room    string          `json:"room"`
	Author  string          `json:"author"`
	Payload json.RawMessage `json:"payload"`
	TimeMs  int64           `json:"timeMs"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements core.Publisher on top of a NATS connection.
type Publisher struct {
	conn    conn
	subject string
}

// Connect dials NATS and returns a ready publisher.
func Connect(cfg Config, logger *zerolog.Logger) (*Publisher, error) {
	if cfg.Name == "" {
		cfg.Name = "roomchat"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info().Str("url", nc.ConnectedUrl()).Str("subject", cfg.Subject).Msg("nats connected")

	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(c conn, subject string) *Publisher {
	return &Publisher{conn: c, subject: subject}
}

// PublishMessage sends msg to <subject>.<room>.
func (p *Publisher) PublishMessage(room string, msg core.Message) error {
	data, err := json.Marshal(FeedMessage{
		ID:      msg.ID,
		Room:    room,
		Author:  msg.From,
		Payload: msg.Payload,
		TimeMs:  msg.TimeMillis(),
	})
	if err != nil {
		return fmt.Errorf("marshal feed message: %w", err)
	}
	subject := p.subject + "." + room
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

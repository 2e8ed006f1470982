package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events on a core NATS subject. Events are advisory, so
// there is no JetStream acknowledgement.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("screening-room-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

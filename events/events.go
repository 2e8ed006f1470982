// Package events forwards room lifecycle notifications (rooms opening and
// closing, members coming and going, host handover) to an external bus.
//
// The coordinator only ever calls Emit, which never blocks; a Dispatcher
// goroutine owns the slow side and publishes to a Sink.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screening-room-server/config"
)

const (
	TypeRoomCreated  = "room.created"
	TypeRoomClosed   = "room.closed"
	TypeMemberJoined = "member.joined"
	TypeMemberLeft   = "member.left"
	TypeHostChanged  = "host.changed"
)

var ErrUnknownBackend = errors.New("unknown events backend")

type Event struct {
	Type     string    `json:"type"`
	Room     string    `json:"room"`
	ConnID   string    `json:"connId,omitempty"`
	UserName string    `json:"userName,omitempty"`
	Size     int       `json:"size"`
	At       time.Time `json:"at"`
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Emitter is what the room coordinator depends on.
type Emitter interface {
	Emit(ev Event)
}

type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }

// NewSink connects the backend selected in cfg.
func NewSink(ctx context.Context, cfg config.Events) (Sink, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return NopSink{}, nil
	case config.BackendRedis:
		return NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel)
	case config.BackendNATS:
		return NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

const publishTimeout = 2 * time.Second

// Dispatcher decouples event producers from the Sink with a bounded queue.
type Dispatcher struct {
	sink  Sink
	queue chan Event
}

func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		sink:  sink,
		queue: make(chan Event, buffer),
	}
}

// Emit queues ev, dropping it when the queue is full.
func (d *Dispatcher) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case d.queue <- ev:
	default:
		slog.Warn("event queue full, dropping event", "type", ev.Type, "room", ev.Room)
	}
}

// Run publishes queued events until ctx is done, then drains whatever is
// still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.publish(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.publish(context.WithoutCancel(ctx), ev)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.sink.Publish(ctx, ev); err != nil {
		slog.Error("publish event failed", "type", ev.Type, "room", ev.Room, "error", err)
	}
}

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"screening-room-server/domain"
)

// Inbound event names.
const (
	EventCreateRoom        = "createRoom"
	EventJoinRoom          = "joinRoom"
	EventRoomMessage       = "roomMessage"
	EventPlay              = "play"
	EventPause             = "pause"
	EventSeek              = "seek"
	EventRateChange        = "rateChange"
	EventEpChange          = "epChange"
	EventSyncVideo         = "syncVideo"
	EventVideoSyncResponse = "videoSyncResponse"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Command is one decoded inbound message.
type Command interface {
	Event() string
}

type CreateRoom struct {
	UserName string `json:"userName"`
}

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

type RoomMessage struct {
	UserName string `json:"userName"`
	IsHost   bool   `json:"isHost"`
	Text     string `json:"text"`
}

type Play struct{}

type Pause struct{}

// Numeric payloads keep the sender's literal so relays forward it unchanged.
type Seek struct{ Time json.Number }

type RateChange struct{ Rate json.Number }

type EpChange struct{ Episode json.Number }

type SyncVideo struct{}

type VideoSyncResponse struct {
	TargetConnection string          `json:"targetConnection"`
	VideoInfo        json.RawMessage `json:"videoInfo"`
}

func (CreateRoom) Event() string        { return EventCreateRoom }
func (JoinRoom) Event() string          { return EventJoinRoom }
func (RoomMessage) Event() string       { return EventRoomMessage }
func (Play) Event() string              { return EventPlay }
func (Pause) Event() string             { return EventPause }
func (Seek) Event() string              { return EventSeek }
func (RateChange) Event() string        { return EventRateChange }
func (EpChange) Event() string          { return EventEpChange }
func (SyncVideo) Event() string         { return EventSyncVideo }
func (VideoSyncResponse) Event() string { return EventVideoSyncResponse }

type decoder func(payload json.RawMessage) (Command, error)

var decoders = map[string]decoder{
	EventCreateRoom: func(p json.RawMessage) (Command, error) {
		var c CreateRoom
		if err := decodeObject(p, &c); err != nil {
			return nil, err
		}
		return c, nil
	},
	EventJoinRoom: func(p json.RawMessage) (Command, error) {
		var c JoinRoom
		if err := decodeObject(p, &c); err != nil {
			return nil, err
		}
		if c.RoomCode == "" {
			return nil, fmt.Errorf("%w: roomCode is required", ErrInvalidPayload)
		}
		return c, nil
	},
	EventRoomMessage: func(p json.RawMessage) (Command, error) {
		var c RoomMessage
		if err := decodeObject(p, &c); err != nil {
			return nil, err
		}
		return c, nil
	},
	EventPlay:  func(json.RawMessage) (Command, error) { return Play{}, nil },
	EventPause: func(json.RawMessage) (Command, error) { return Pause{}, nil },
	EventSeek: func(p json.RawMessage) (Command, error) {
		v, err := decodeNumber(p)
		if err != nil {
			return nil, err
		}
		return Seek{Time: v}, nil
	},
	EventRateChange: func(p json.RawMessage) (Command, error) {
		v, err := decodeNumber(p)
		if err != nil {
			return nil, err
		}
		return RateChange{Rate: v}, nil
	},
	EventEpChange: func(p json.RawMessage) (Command, error) {
		v, err := decodeNumber(p)
		if err != nil {
			return nil, err
		}
		return EpChange{Episode: v}, nil
	},
	EventSyncVideo: func(json.RawMessage) (Command, error) { return SyncVideo{}, nil },
	EventVideoSyncResponse: func(p json.RawMessage) (Command, error) {
		var c VideoSyncResponse
		if err := decodeObject(p, &c); err != nil {
			return nil, err
		}
		if c.TargetConnection == "" {
			return nil, fmt.Errorf("%w: targetConnection is required", ErrInvalidPayload)
		}
		return c, nil
	},
}

// Decode parses one text frame into a Command.
func Decode(data []byte) (Command, error) {
	var env domain.RawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	decode, ok := decoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	cmd, err := decode(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Event, err)
	}
	return cmd, nil
}

func decodeObject(p json.RawMessage, v any) error {
	if len(p) == 0 || p[0] != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decodeNumber(p json.RawMessage) (json.Number, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: expected number: %v", ErrInvalidPayload, err)
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("%w: expected number", ErrInvalidPayload)
	}
	return n, nil
}

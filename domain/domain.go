package domain

import "encoding/json"

// Outbound event names.
const (
	EventRoomCreated      = "roomCreated"
	EventRoomJoined       = "roomJoined"
	EventRoomMessage      = "roomMessage"
	EventPlayed           = "played"
	EventPaused           = "paused"
	EventSeeked           = "seeked"
	EventRateChanged      = "rateChanged"
	EventEpChanged        = "epChanged"
	EventVideoSyncRequest = "videoSyncRequest"
	EventVideoInfo        = "videoInfo"
	EventHostChanged      = "hostChanged"
)

// Chat message kinds carried in roomMessage payloads.
const (
	MessageSystem = "system"
	MessageHost   = "host"
	MessageUser   = "user"
)

// SystemUserName signs join/leave notices.
const SystemUserName = "NeiKos496"

// Envelope is the unit exchanged over a connection in both directions.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// RawEnvelope is an inbound envelope whose payload is decoded per event.
type RawEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ChatMessage struct {
	Type     string `json:"type"`
	UserName string `json:"userName"`
	Text     string `json:"text"`
}

// RoomInfo is a point-in-time view of a live room.
type RoomInfo struct {
	Code string `json:"code"`
	Size int    `json:"size"`
}

type Connection interface {
	ID() string
	RemoteAddr() string
	Send(data []byte) error
	Close() error
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}

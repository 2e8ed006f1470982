package protocol

import (
	"encoding/json"
	"errors"
	"log/slog"

	"screening-room-server/domain"
)

// Coordinator is the room state the handler drives. *hub.Hub implements it.
type Coordinator interface {
	CreateRoom(conn domain.Connection, userName string)
	JoinRoom(conn domain.Connection, code, userName string)
	RoomMessage(conn domain.Connection, userName string, isHost bool, text string)
	Relay(conn domain.Connection, env domain.Envelope)
	SyncVideo(conn domain.Connection)
	SendVideoInfo(conn domain.Connection, targetID string, info json.RawMessage)
	Disconnect(conn domain.Connection)
}

type Handler struct {
	rooms Coordinator
}

func NewHandler(c Coordinator) *Handler {
	return &Handler{rooms: c}
}

// Handle decodes one inbound frame and applies it. Bad frames are logged and
// dropped; the connection stays open and gets no reply.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	cmd, err := Decode(data)
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			slog.Warn("unknown event", "connId", conn.ID(), "error", err)
		} else {
			slog.Warn("invalid message", "connId", conn.ID(), "error", err)
		}
		return
	}

	slog.Debug("event", "connId", conn.ID(), "event", cmd.Event())
	h.dispatch(conn, cmd)
}

func (h *Handler) Disconnect(conn domain.Connection) {
	h.rooms.Disconnect(conn)
}

func (h *Handler) dispatch(conn domain.Connection, cmd Command) {
	switch c := cmd.(type) {
	case CreateRoom:
		h.rooms.CreateRoom(conn, c.UserName)
	case JoinRoom:
		h.rooms.JoinRoom(conn, c.RoomCode, c.UserName)
	case RoomMessage:
		h.rooms.RoomMessage(conn, c.UserName, c.IsHost, c.Text)
	case Play:
		h.rooms.Relay(conn, domain.Envelope{Event: domain.EventPlayed})
	case Pause:
		h.rooms.Relay(conn, domain.Envelope{Event: domain.EventPaused})
	case Seek:
		h.rooms.Relay(conn, domain.Envelope{Event: domain.EventSeeked, Payload: c.Time})
	case RateChange:
		h.rooms.Relay(conn, domain.Envelope{Event: domain.EventRateChanged, Payload: c.Rate})
	case EpChange:
		h.rooms.Relay(conn, domain.Envelope{Event: domain.EventEpChanged, Payload: c.Episode})
	case SyncVideo:
		h.rooms.SyncVideo(conn)
	case VideoSyncResponse:
		h.rooms.SendVideoInfo(conn, c.TargetConnection, c.VideoInfo)
	default:
		slog.Warn("unhandled command", "connId", conn.ID(), "event", cmd.Event())
	}
}

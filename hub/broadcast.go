package hub

import (
	"encoding/json"
	"log/slog"

	"screening-room-server/domain"
)

// broadcastLocked sends env to every member of r except exclude, which may
// be nil. A failed send is logged and the loop carries on.
func (h *Hub) broadcastLocked(r *room, env domain.Envelope, exclude domain.Connection) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal envelope", "event", env.Event, "error", err)
		return
	}

	for _, member := range r.members {
		if exclude != nil && member.ID() == exclude.ID() {
			continue
		}
		if err := member.Send(data); err != nil {
			slog.Warn("send failed", "room", r.code, "connId", member.ID(), "event", env.Event, "error", err)
		}
	}
}

func (h *Hub) sendLocked(conn domain.Connection, env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal envelope", "event", env.Event, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("send failed", "connId", conn.ID(), "event", env.Event, "error", err)
	}
}

func systemMessage(text string) domain.Envelope {
	return domain.Envelope{
		Event: domain.EventRoomMessage,
		Payload: domain.ChatMessage{
			Type:     domain.MessageSystem,
			UserName: domain.SystemUserName,
			Text:     text,
		},
	}
}

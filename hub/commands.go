package hub

import (
	"encoding/json"
	"log/slog"

	"screening-room-server/domain"
	"screening-room-server/events"
)

// CreateRoom opens a room under a fresh code with conn as its only member
// and host. A connection already in a room leaves it first.
func (h *Hub) CreateRoom(conn domain.Connection, userName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	code, err := h.newCodeLocked()
	if err != nil {
		slog.Error("create room", "connId", conn.ID(), "error", err)
		return
	}

	if s, ok := h.sessions[conn.ID()]; ok {
		h.leaveLocked(s)
	}
	h.createLocked(conn, code, userName)
}

// JoinRoom adds conn to the room named code. When no such room exists the
// caller creates it under that code and becomes host.
func (h *Hub) JoinRoom(conn domain.Connection, code, userName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[conn.ID()]; ok {
		if s.roomCode == code {
			slog.Debug("already in room", "connId", conn.ID(), "room", code)
			return
		}
		h.leaveLocked(s)
	}

	r, ok := h.rooms[code]
	if !ok {
		h.createLocked(conn, code, userName)
		return
	}

	r.add(conn)
	h.sessions[conn.ID()] = &session{conn: conn, userName: userName, roomCode: code}

	h.sendLocked(conn, domain.Envelope{Event: domain.EventRoomJoined})
	h.broadcastLocked(r, systemMessage(userName+" 来了"), conn)

	h.emitter.Emit(events.Event{Type: events.TypeMemberJoined, Room: code, ConnID: conn.ID(), UserName: userName, Size: r.size()})
	slog.Info("room joined", "room", code, "connId", conn.ID(), "userName", userName, "size", r.size())
}

func (h *Hub) createLocked(conn domain.Connection, code, userName string) {
	h.sessions[conn.ID()] = &session{conn: conn, userName: userName, roomCode: code, isHost: true}
	h.rooms[code] = newRoom(code, conn)

	h.sendLocked(conn, domain.Envelope{Event: domain.EventRoomCreated, Payload: code})

	h.emitter.Emit(events.Event{Type: events.TypeRoomCreated, Room: code, ConnID: conn.ID(), UserName: userName, Size: 1})
	slog.Info("room created", "room", code, "connId", conn.ID(), "userName", userName)
	h.logRoomsLocked()
}

// RoomMessage relays a chat line to every member of the sender's room,
// sender included.
func (h *Hub) RoomMessage(conn domain.Connection, userName string, isHost bool, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomOfLocked(conn)
	if r == nil {
		return
	}

	kind := domain.MessageUser
	if isHost {
		kind = domain.MessageHost
	}
	h.broadcastLocked(r, domain.Envelope{
		Event:   domain.EventRoomMessage,
		Payload: domain.ChatMessage{Type: kind, UserName: userName, Text: text},
	}, nil)

	slog.Debug("room message", "room", r.code, "userName", userName, "text", text)
}

// Relay forwards a playback envelope to every member of the sender's room
// except the sender.
func (h *Hub) Relay(conn domain.Connection, env domain.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomOfLocked(conn)
	if r == nil {
		return
	}
	h.broadcastLocked(r, env, conn)
}

// SyncVideo asks the host of the sender's room to report its playback
// state back to the sender.
func (h *Hub) SyncVideo(conn domain.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomOfLocked(conn)
	if r == nil {
		return
	}

	for _, member := range r.members {
		if s, ok := h.sessions[member.ID()]; ok && s.isHost {
			h.sendLocked(member, domain.Envelope{Event: domain.EventVideoSyncRequest, Payload: conn.ID()})
			return
		}
	}
	slog.Debug("no host to sync from", "room", r.code, "connId", conn.ID())
}

// SendVideoInfo delivers info to the connection identified by targetID only.
func (h *Hub) SendVideoInfo(conn domain.Connection, targetID string, info json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[conn.ID()]; !ok {
		return
	}
	target, ok := h.sessions[targetID]
	if !ok {
		slog.Warn("video info target not found", "connId", conn.ID(), "target", targetID)
		return
	}
	h.sendLocked(target.conn, domain.Envelope{Event: domain.EventVideoInfo, Payload: info})
}

func (h *Hub) roomOfLocked(conn domain.Connection) *room {
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return nil
	}
	return h.rooms[s.roomCode]
}

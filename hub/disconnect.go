package hub

import (
	"log/slog"

	"screening-room-server/domain"
	"screening-room-server/events"
)

// Disconnect removes conn's session, tearing down or re-hosting its room as
// needed. Unknown connections are ignored.
func (h *Hub) Disconnect(conn domain.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[conn.ID()]
	if !ok {
		return
	}
	h.leaveLocked(s)
	delete(h.sessions, conn.ID())
}

// leaveLocked takes s out of its room. An emptied room is deleted; otherwise
// the rest are told, and a departing host hands over to the first remaining
// member.
func (h *Hub) leaveLocked(s *session) {
	wasHost := s.isHost
	s.isHost = false

	r, ok := h.rooms[s.roomCode]
	if !ok {
		return
	}
	r.remove(s.conn)
	slog.Info("room left", "room", r.code, "connId", s.conn.ID(), "userName", s.userName, "size", r.size())

	if r.size() == 0 {
		delete(h.rooms, r.code)
		h.emitter.Emit(events.Event{Type: events.TypeRoomClosed, Room: r.code, ConnID: s.conn.ID(), UserName: s.userName})
		slog.Info("room closed", "room", r.code)
		h.logRoomsLocked()
		return
	}

	h.broadcastLocked(r, systemMessage(s.userName+" 走了"), nil)
	h.emitter.Emit(events.Event{Type: events.TypeMemberLeft, Room: r.code, ConnID: s.conn.ID(), UserName: s.userName, Size: r.size()})

	if wasHost {
		h.migrateHostLocked(r)
	}
}

func (h *Hub) migrateHostLocked(r *room) {
	for _, member := range r.members {
		next, ok := h.sessions[member.ID()]
		if !ok {
			continue
		}
		next.isHost = true
		r.hostAddr = member.RemoteAddr()
		h.sendLocked(member, domain.Envelope{Event: domain.EventHostChanged})

		h.emitter.Emit(events.Event{Type: events.TypeHostChanged, Room: r.code, ConnID: member.ID(), UserName: next.userName, Size: r.size()})
		slog.Info("host changed", "room", r.code, "connId", member.ID(), "userName", next.userName)
		return
	}
}

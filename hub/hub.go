// Package hub coordinates co-viewing rooms: which connections belong to
// which room, who hosts each room, and fan-out of playback commands.
//
// Every exported operation runs to completion under a single mutex that
// guards both the room and session registries, so join, leave and host
// migration never interleave. Connection.Send must not block.
package hub

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"screening-room-server/domain"
	"screening-room-server/events"
)

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	sessions map[string]*session

	codes   CodeGenerator
	emitter events.Emitter
}

type Option func(*Hub)

func WithCodeGenerator(g CodeGenerator) Option {
	return func(h *Hub) { h.codes = g }
}

// WithEmitter sets where lifecycle events go. Emit is called while the hub
// lock is held.
func WithEmitter(e events.Emitter) Option {
	return func(h *Hub) { h.emitter = e }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		rooms:    make(map[string]*room),
		sessions: make(map[string]*session),
		codes:    DigitCodeGenerator{Length: DefaultCodeLength},
		emitter:  nopEmitter{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) {}

// SessionInfo is a copy of one connection's session attributes.
type SessionInfo struct {
	UserName string
	RoomCode string
	IsHost   bool
}

// RoomState is a copy of one room's registry entry.
type RoomState struct {
	Code     string
	Members  []string // connection IDs in join order
	HostAddr string
}

func (r RoomState) Size() int { return len(r.Members) }

func (h *Hub) Session(connID string) (SessionInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{UserName: s.userName, RoomCode: s.roomCode, IsHost: s.isHost}, true
}

func (h *Hub) Room(code string) (RoomState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[code]
	if !ok {
		return RoomState{}, false
	}
	ids := make([]string, len(r.members))
	for i, m := range r.members {
		ids[i] = m.ID()
	}
	return RoomState{Code: r.code, Members: ids, HostAddr: r.hostAddr}, true
}

// Rooms lists live rooms ordered by code.
func (h *Hub) Rooms() []domain.RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomsLocked()
}

func (h *Hub) roomsLocked() []domain.RoomInfo {
	out := make([]domain.RoomInfo, 0, len(h.rooms))
	for code, r := range h.rooms {
		out = append(out, domain.RoomInfo{Code: code, Size: r.size()})
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func (h *Hub) Stats() (rooms, sessions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms), len(h.sessions)
}

func (h *Hub) logRoomsLocked() {
	codes := make([]string, 0, len(h.rooms))
	for _, info := range h.roomsLocked() {
		codes = append(codes, info.Code)
	}
	slog.Debug("live rooms", "codes", codes)
}

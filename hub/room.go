package hub

import "screening-room-server/domain"

type room struct {
	code     string
	members  []domain.Connection
	hostAddr string // informational only
}

func newRoom(code string, first domain.Connection) *room {
	return &room{
		code:     code,
		members:  []domain.Connection{first},
		hostAddr: first.RemoteAddr(),
	}
}

func (r *room) size() int { return len(r.members) }

func (r *room) add(conn domain.Connection) {
	r.members = append(r.members, conn)
}

// remove drops conn and keeps the remaining members in join order.
func (r *room) remove(conn domain.Connection) bool {
	for i, m := range r.members {
		if m.ID() == conn.ID() {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

type session struct {
	conn     domain.Connection
	userName string
	roomCode string
	isHost   bool
}

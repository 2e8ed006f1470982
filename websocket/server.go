package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"screening-room-server/domain"
)

// Handler upgrades requests to room connections. An empty allowedOrigins
// accepts every origin.
func Handler(h domain.MessageHandler, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "remoteAddr", r.RemoteAddr, "error", err)
			return
		}

		conn := NewConn(uuid.NewString(), r.RemoteAddr, ws, h)
		slog.Info("client connected", "connId", conn.ID(), "remoteAddr", r.RemoteAddr)
		conn.Start()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

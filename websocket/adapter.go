package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"screening-room-server/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrClosed        = errors.New("connection closed")
)

type Conn struct {
	id         string
	remoteAddr string
	ws         *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	handler    domain.MessageHandler
}

func NewConn(id, remoteAddr string, ws *websocket.Conn, h domain.MessageHandler) *Conn {
	return &Conn{
		id:         id,
		remoteAddr: remoteAddr,
		ws:         ws,
		send:       make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
		handler:    h,
	}
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Send queues data for the write pump without blocking. A peer that lets
// its queue fill up is disconnected.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		slog.Warn("send queue full, closing", "connId", c.id)
		c.Close()
		return ErrSendQueueFull
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.handler.Disconnect(c)
		c.Close()
		slog.Info("client disconnected", "connId", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("read error", "connId", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			slog.Warn("ignoring non-text frame", "connId", c.id, "type", msgType)
			continue
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// Client is one websocket connection. Its read pump handles inbound events
// in order; its write pump drains the bounded send buffer.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	hub   *Hub
	relay *Relay

	maxMessageSize int64
}

func newClient(hub *Hub, relay *Relay, conn *websocket.Conn, sendBuffer int, maxMessageSize int64) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	return &Client{
		id:             uuid.New().String(),
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		done:           make(chan struct{}),
		hub:            hub,
		relay:          relay,
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) ID() string {
	return c.id
}

// close stops the write pump. The send channel is never closed so late
// senders cannot panic.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// shutdown sends a going-away close frame and closes the socket, which ends
// the read pump and runs its cleanup.
func (c *Client) shutdown() {
	if c.conn == nil {
		c.close()
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		slog.Debug("Error writing close frame", "connID", c.id, "error", err)
	}
	c.conn.Close()
}

func (c *Client) enqueue(data []byte, timeout time.Duration) error {
	if c.isClosed() {
		return ErrTargetUnavailable
	}

	select {
	case c.send <- data:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrTargetUnavailable
	case <-timer.C:
		return ErrSendBufferFull
	}
}

func (c *Client) readPump() {
	defer func() {
		// Membership must be gone before the hub forgets the connection so
		// no broadcast can target a half-removed client.
		c.relay.Disconnect(c.id)
		c.hub.Unregister(c.id)
		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "connID", c.id, "error", err)
		}
		c.hub.pumps.Done()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	slog.Debug("ReadPump started", "connID", c.id)

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("WebSocket read error", "connID", c.id, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "connID", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.relay.HandleFrame(context.Background(), c.id, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		slog.Debug("WritePump finished", "connID", c.id)
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("Error writing message", "connID", c.id, "error", err)
				c.conn.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "connID", c.id, "error", err)
				c.conn.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

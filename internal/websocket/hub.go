package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultSendTimeout = 50 * time.Millisecond

// outbound is the frame written for every relayed event.
type outbound struct {
	Event EventType   `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub owns the live connections and implements Transport over them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	// tracks read pumps so shutdown can wait for their cleanup
	pumps sync.WaitGroup

	sendTimeout time.Duration
	metrics     *ConnectionMetrics
}

func NewHub(metrics *ConnectionMetrics, sendTimeout time.Duration) *Hub {
	if metrics == nil {
		metrics = NewConnectionMetrics()
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Hub{
		clients:     make(map[string]*Client),
		sendTimeout: sendTimeout,
		metrics:     metrics,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	slog.Debug("Client registered", "connID", c.id)
}

// Unregister removes the client and stops its writer. Safe to call twice.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()

	if ok {
		c.close()
		slog.Debug("Client unregistered", "connID", connID)
	}
}

func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send encodes the event and queues it on the target connection. Unknown ids
// yield ErrTargetUnavailable; a buffer that stays full past the send timeout
// drops the event.
func (h *Hub) Send(connID string, event EventType, payload interface{}) error {
	if h.client(connID) == nil {
		return ErrTargetUnavailable
	}
	frame, err := h.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return h.SendFrame(connID, event, frame)
}

// EncodeFrame builds the wire frame for one event.
func (h *Hub) EncodeFrame(event EventType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", event)
	}
	return data, nil
}

// SendFrame queues an encoded frame. The frame may be shared between
// connections and is never modified.
func (h *Hub) SendFrame(connID string, event EventType, frame []byte) error {
	c := h.client(connID)
	if c == nil {
		return ErrTargetUnavailable
	}

	if err := c.enqueue(frame, h.sendTimeout); err != nil {
		if errors.Is(err, ErrSendBufferFull) {
			h.metrics.sendsDropped.Add(1)
			slog.Warn("Send buffer full, event dropped", "connID", connID, "event", event)
		}
		return err
	}
	return nil
}

// CloseAll closes every live connection and waits until their disconnect
// cleanup finished or ctx expires.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	slog.Info("Closing websocket connections", "count", len(clients))
	for _, c := range clients {
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for websocket cleanup")
	}
}

package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	AllowedOrigins []string
	SendBuffer     int
	MaxMessageSize int64
}

// Handler upgrades HTTP requests and starts the per-connection pumps.
type Handler struct {
	hub      *Hub
	relay    *Relay
	upgrader websocket.Upgrader
	opts     HandlerOptions
}

func NewHandler(hub *Hub, relay *Relay, opts HandlerOptions) *Handler {
	return &Handler{
		hub:   hub,
		relay: relay,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients), any listed origin, and local development hosts. "*" allows all.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
	}
}

// ServeWS upgrades the request. userID is the authenticated user from the
// handshake, or 0 for an anonymous connection that binds later via join_room.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "userID", userID, "error", err)
		return
	}

	client := newClient(h.hub, h.relay, conn, h.opts.SendBuffer, h.opts.MaxMessageSize)
	h.hub.Register(client)
	h.hub.pumps.Add(1)

	if err := h.relay.Connect(client.id, userID); err != nil {
		slog.Warn("Handshake bind failed, continuing anonymous", "connID", client.id, "userID", userID, "error", err)
	}
	slog.Info("New WebSocket connection established", "connID", client.id, "userID", userID)

	go client.writePump()
	go client.readPump()
}

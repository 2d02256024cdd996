package handlers

import (
	"net/http"
	"strings"

	"signal-relay/internal/services"
	"signal-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub       *websocket.Hub
	relay     *websocket.Relay
	ws        *websocket.Handler
	jwtSecret string
}

func NewWSHandler(hub *websocket.Hub, relay *websocket.Relay, ws *websocket.Handler, jwtSecret string) *WSHandler {
	return &WSHandler{hub: hub, relay: relay, ws: ws, jwtSecret: jwtSecret}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Upgrade to the event relay. A valid token binds the connection to its user; without one the connection stays anonymous until join_room names a user.
// @Tags websocket
// @Param token query string false "JWT from /auth/login"
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 401 {object} map[string]interface{} "Invalid token"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	var userID uint
	if token != "" {
		id, err := services.ParseUserToken(token, h.jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = id
	}

	h.ws.ServeWS(c.Writer, c.Request, userID)
}

// Stats godoc
// @Summary Relay statistics
// @Tags websocket
// @Produce json
// @Success 200 {object} websocket.MetricsSnapshot
// @Router /ws/stats [get]
func (h *WSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.relay.Stats(h.hub.Count()))
}

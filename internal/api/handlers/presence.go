package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"signal-relay/internal/utils"
	"signal-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

// OnlineLister reads the shared presence set.
type OnlineLister interface {
	GetOnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceHandler struct {
	presence OnlineLister
	relay    *websocket.Relay
}

// NewPresenceHandler answers from presence when set, otherwise from the
// relay's own sessions.
func NewPresenceHandler(presence OnlineLister, relay *websocket.Relay) *PresenceHandler {
	return &PresenceHandler{presence: presence, relay: relay}
}

// GetOnlineUsers godoc
// @Summary Online users
// @Description Ids of users holding at least one live websocket connection
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]uint
// @Router /users/online [get]
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusOK, gin.H{"online": h.relay.Sessions().OnlineUserIDs()})
		return
	}

	raw, err := h.presence.GetOnlineUsers(c.Request.Context())
	if err != nil {
		slog.Warn("Presence lookup failed, using local sessions", "error", err)
		c.JSON(http.StatusOK, gin.H{"online": h.relay.Sessions().OnlineUserIDs()})
		return
	}

	ids := make([]uint, 0, len(raw))
	for _, s := range raw {
		id, err := utils.StringToUint(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	c.JSON(http.StatusOK, gin.H{"online": ids})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"signal-relay/internal/models"
	"signal-relay/internal/services"
	"signal-relay/internal/utils"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// GetChats godoc
// @Summary List the caller's chats
// @Description Chats with participants and a last message preview. Text previews are masked.
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ChatResponse
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid or missing token"
// @Router /chats [get]
func (h *ChatHandler) GetChats(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		slog.Error("Failed to list chats", "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list chats"})
		return
	}
	c.JSON(http.StatusOK, chats)
}

// CreateChat godoc
// @Summary Create a chat
// @Description Creates a 1:1 or group chat. The caller is always a participant.
// @Tags chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateChatRequest true "Participants and options"
// @Success 201 {object} models.CreateChatResponse
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /chats/create [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !slices.Contains(req.Participants, userID) {
		req.Participants = append(req.Participants, userID)
	}

	resp, err := h.chatService.CreateChat(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participants"})
			return
		}
		slog.Error("Failed to create chat", "userID", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetChatMessages godoc
// @Summary Chat history
// @Description All messages of a chat, oldest first, including ttl
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chat ID"
// @Success 200 {array} models.Message
// @Failure 403 {object} map[string]interface{} "Not a participant"
// @Failure 404 {object} map[string]interface{} "Chat not found"
// @Router /chats/{id}/messages [get]
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	chatID, err := utils.StringToUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), chatID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		case errors.Is(err, services.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
		default:
			slog.Error("Failed to list messages", "chatID", chatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		}
		return
	}
	c.JSON(http.StatusOK, messages)
}

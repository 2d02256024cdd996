package handlers

import (
	"errors"
	"net/http"

	"signal-relay/internal/models"
	"signal-relay/internal/services"
	"signal-relay/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// ListUsers godoc
// @Summary List users
// @Description Directory of all registered users, without public keys
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserResponse
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid or missing token"
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// SearchUser godoc
// @Summary Find a user by phone
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SearchUserRequest true "Phone to look up"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} map[string]interface{} "User not found"
// @Router /users/search [post]
func (h *UserHandler) SearchUser(c *gin.Context) {
	var req models.SearchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.SearchByPhone(c.Request.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetPublicKey godoc
// @Summary Get a user's public key
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.PublicKeyResponse
// @Failure 404 {object} map[string]interface{} "User not found"
// @Router /users/{id}/key [get]
func (h *UserHandler) GetPublicKey(c *gin.Context) {
	userID, err := utils.StringToUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	key, err := h.userService.GetPublicKey(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load key"})
		return
	}
	c.JSON(http.StatusOK, models.PublicKeyResponse{PublicKey: key})
}

// UpdatePublicKey godoc
// @Summary Replace the caller's public key
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateKeyRequest true "New key"
// @Success 200 {object} map[string]interface{}
// @Router /users/key [post]
func (h *UserHandler) UpdatePublicKey(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.UpdatePublicKey(c.Request.Context(), userID, req.PublicKey); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key updated"})
}

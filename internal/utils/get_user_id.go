package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is where the auth middleware stores the caller id.
const ContextUserIDKey = "user_id"

var ErrNoUserInContext = errors.New("user_id not found in context")

func GetUserID(c *gin.Context) (uint, error) {
	userIDToken, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, ErrNoUserInContext
	}
	userID, ok := userIDToken.(uint)
	if !ok || userID == 0 {
		return 0, errors.New("user_id in context is not a valid uint")
	}
	return userID, nil
}

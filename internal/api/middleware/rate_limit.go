package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"signal-relay/internal/utils"

	"github.com/gin-gonic/gin"
)

// RateLimiter is backed by the redis sliding window in services.RedisService.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
}

// NewRateLimitMiddleware returns a middleware set; a nil limiter disables
// limiting.
func NewRateLimitMiddleware(limiter RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// RateLimit limits authenticated callers per endpoint.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := utils.GetUserID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		rm.check(c, fmt.Sprintf("rate_limit:%d:%s", userID, c.FullPath()), requests, window)
	}
}

// RateLimitIP limits public routes per client address.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rm.check(c, fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath()), requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	if rm.limiter == nil {
		c.Next()
		return
	}

	allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		slog.Error("Rate limit check failed", "key", key, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return
	}

	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Rate limit exceeded",
			"message": fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window),
		})
		return
	}

	c.Next()
}

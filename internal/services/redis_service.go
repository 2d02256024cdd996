package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signal-relay/internal/database"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
	}
}

// =============================================================================
// User Status Management
// =============================================================================

func (r *RedisService) SetUserOnline(ctx context.Context, userID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to set user online", "userID", userID, "error", err)
		return err
	}

	slog.Debug("User set to online", "userID", userID)
	return nil
}

func (r *RedisService) SetUserOffline(ctx context.Context, userID string) error {
	pipe := r.client.GetClient().Pipeline()

	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to set user offline", "userID", userID, "error", err)
		return err
	}

	slog.Debug("User set to offline", "userID", userID)
	return nil
}

func (r *RedisService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.GetClient().SMembers(ctx, onlineUsersKey).Result()
}

// ClearPresence drops the online set, used at startup since no connection
// survives a restart.
func (r *RedisService) ClearPresence(ctx context.Context) error {
	return r.client.GetClient().Del(ctx, onlineUsersKey).Err()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit is a sliding-window counter over a sorted set.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() < int64(limit), nil
}

package services

import (
	"context"
	"os"
	"testing"
	"time"

	"signal-relay/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to REDIS_TEST_URL (db 15 on localhost by default)
// and skips when nothing is listening.
func newTestRedis(t *testing.T) *RedisService {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://127.0.0.1:6379/15"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	opts.DialTimeout = 500 * time.Millisecond

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return NewRedisService(database.NewRedisClientFrom(client))
}

func TestRedisPresence(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, svc.SetUserOnline(ctx, "1"))
	require.NoError(t, svc.SetUserOnline(ctx, "2"))

	users, err := svc.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, users)

	require.NoError(t, svc.SetUserOffline(ctx, "1"))
	users, err = svc.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2"}, users)

	require.NoError(t, svc.ClearPresence(ctx))
	users, err = svc.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRedisRateLimit(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := svc.CheckRateLimit(ctx, "rl:test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		// scores are nanosecond timestamps; keep members distinct
		time.Sleep(time.Millisecond)
	}
	allowed, err := svc.CheckRateLimit(ctx, "rl:test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

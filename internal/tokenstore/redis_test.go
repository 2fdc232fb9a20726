package tokenstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis test")
	}
	ctx := context.Background()
	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: addr}), "estate:test:blacklist:")
	defer func() { _ = bl.Close() }()

	jti := uuid.NewString()
	revoked, err := bl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = bl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.True(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "expired-"+jti, time.Now().Add(-time.Minute)))
	revoked, err = bl.IsRevoked(ctx, "expired-"+jti)
	require.NoError(t, err)
	require.False(t, revoked)
}

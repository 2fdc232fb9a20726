package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisBlacklist struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisBlacklist(rdb redis.UniversalClient, prefix string) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb, prefix: prefix}
}

func (r *RedisBlacklist) key(jti string) string {
	return r.prefix + jti
}

func (r *RedisBlacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (r *RedisBlacklist) Close() error {
	return r.rdb.Close()
}

// Package tokenstore keeps revoked JWT ids until the tokens would have expired anyway.
package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/estate/internal/config"
)

type Blacklist interface {
	// Revoke remembers jti until expiresAt. A token that has already expired is ignored.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func New(cfg config.BlacklistConfig, redisCfg config.RedisConfig) (Blacklist, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryBlacklist(time.Minute), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		return NewRedisBlacklist(client, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported token blacklist type: %s", cfg.Type)
	}
}

// Package cache provides the shared redis client. Redis is optional: with no
// address configured the provider yields a nil client and every consumer
// degrades to its local fallback.
package cache

import (
	"strings"

	"github.com/namevault/namevault/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func NewRedis(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
}

var Module = fx.Module("cache",
	fx.Provide(NewRedis),
)

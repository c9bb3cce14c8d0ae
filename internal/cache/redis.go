// Package cache holds the optional redis layer. Without REDIS_ADDR every
// lookup goes straight to postgres.
package cache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loanrecovery/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when caching is disabled or redis is unreachable.
func NewRedisClient(ctx context.Context, cfg config.Config, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		logger.Info("REDIS_ADDR not set, identity cache disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable, identity cache disabled", "addr", cfg.RedisAddr, "err", err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return rdb
}

// Pinger adapts a redis client to the readiness probe.
type Pinger struct {
	rdb redis.Cmdable
}

func NewPinger(rdb redis.Cmdable) Pinger {
	return Pinger{rdb: rdb}
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

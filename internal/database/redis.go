package database

import (
	"context"
	"fmt"
	"time"

	"nudge/internal/config"
	"nudge/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to the tick-lock store. It returns nil without error when
// REDIS_ADDR is not configured.
func OpenRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("redis connection established", "addr", cfg.RedisAddr)
	return rdb, nil
}

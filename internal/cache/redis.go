// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/taboo/internal/config"
	"github.com/redis/go-redis/v9"
)

// Connect creates a client for cfg and pings it.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

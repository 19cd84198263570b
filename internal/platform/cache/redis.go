package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedisWithRetry pings addr up to maxRetries times before giving up.
func ConnectRedisWithRetry(ctx context.Context, addr string, maxRetries int, backoff time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			slog.Info("redis connected", "addr", addr)
			return rdb, nil
		}
		slog.Warn("redis ping failed", "attempt", i, "maxRetries", maxRetries, "err", lastErr)

		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("redis connection failed after %d retries: %w", maxRetries, lastErr)
}

package org

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "org:external:"

func CacheKey(externalID string) string {
	return cacheKeyPrefix + externalID
}

// CachedLookup keeps resolved ids in redis. Concurrent misses for the same
// id share one upstream call. Redis errors fall through to the wrapped
// lookup.
type CachedLookup struct {
	next Lookup
	rdb  *redis.Client
	ttl  time.Duration
	sf   singleflight.Group
}

func NewCachedLookup(next Lookup, rdb *redis.Client, ttl time.Duration) *CachedLookup {
	return &CachedLookup{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedLookup) ResolveInternalID(ctx context.Context, externalID string) (string, error) {
	key := CacheKey(externalID)
	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil && cached != "":
			return cached, nil
		case err != nil && !errors.Is(err, redis.Nil):
			slog.Warn("org cache read failed", "key", key, "err", err)
		}
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		id, err := c.next.ResolveInternalID(ctx, externalID)
		if err != nil {
			return "", err
		}
		if c.rdb != nil {
			if err := c.rdb.Set(ctx, key, id, c.ttl).Err(); err != nil {
				slog.Warn("org cache write failed", "key", key, "err", err)
			}
		}
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

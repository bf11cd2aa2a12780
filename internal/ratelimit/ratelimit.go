// Package ratelimit implements a per-user, per-endpoint sliding window backed
// by Redis. Handlers are stateless, so the window has to live in shared
// storage.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const staleWindowTTL = 24 * time.Hour

type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow checks and records one request for (userID, endpoint). It returns
// whether the request may proceed and, when denied, how long to wait.
//
// Storage errors fail OPEN: a Redis outage must never block legitimate users.
func (l *Limiter) Allow(ctx context.Context, userID, endpoint string) (bool, time.Duration) {
	key := fmt.Sprintf("ratelimit:%s:%s", endpoint, userID)
	now := time.Now()
	windowStart := now.Add(-l.window)

	if err := l.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10)).Err(); err != nil {
		slog.Error("Rate limiter cleanup failed, allowing request", "error", err, "key", key)
		return true, 0
	}

	count, err := l.rdb.ZCard(ctx, key).Result()
	if err != nil {
		slog.Error("Rate limiter count failed, allowing request", "error", err, "key", key)
		return true, 0
	}

	if count >= int64(l.limit) {
		retryAfter := l.window
		if oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) > 0 {
			oldestAt := time.UnixMilli(int64(oldest[0].Score))
			retryAfter = time.Until(oldestAt.Add(l.window))
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return false, retryAfter
	}

	member := redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()}
	if err := l.rdb.ZAdd(ctx, key, member).Err(); err != nil {
		slog.Error("Rate limiter record failed, allowing request", "error", err, "key", key)
		return true, 0
	}
	// Stale windows are swept by TTL rather than a background job.
	l.rdb.Expire(ctx, key, staleWindowTTL)

	return true, 0
}

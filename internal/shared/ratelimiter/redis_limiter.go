package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares the fixed-window counters across instances through Redis.
// The first hit in a window creates the key with the window as its TTL.
type RedisLimiter struct {
	rdb      redis.Cmdable
	prefix   string
	limit    int64
	interval time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter storing counters under "<prefix>:<key>".
func NewRedisLimiter(rdb redis.Cmdable, prefix string, limit int, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:      rdb,
		prefix:   prefix,
		limit:    int64(limit),
		interval: interval,
	}
}

func (l *RedisLimiter) key(k string) string {
	return fmt.Sprintf("%s:%s", l.prefix, k)
}

// Allow increments the counter for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.key(key)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.interval).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate window: %w", err)
		}
	}
	if n <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read rate window: %w", err)
	}
	// TTLが失われたキーは次のリクエストで作り直す
	if ttl < 0 {
		_ = l.rdb.Expire(ctx, k, l.interval).Err()
		ttl = l.interval
	}
	return false, ttl, nil
}

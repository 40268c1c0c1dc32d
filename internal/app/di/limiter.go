// Package di wires the concrete adapters chosen by configuration.
package di

import (
	"github.com/redis/go-redis/v9"

	"account_backend/internal/config"
	"account_backend/internal/shared/ratelimiter"
)

// NewLimiter creates a request Limiter.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to process memory.
func NewLimiter(rdb *redis.Client, cfg config.Config) ratelimiter.Limiter {
	if rdb != nil {
		return ratelimiter.NewRedisLimiter(rdb, "ratelimit:auth", cfg.RateLimit, cfg.RateLimitWindow)
	}
	return ratelimiter.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
}

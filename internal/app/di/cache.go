package di

import (
	"github.com/redis/go-redis/v9"

	"account_backend/internal/config"
	"account_backend/internal/feature/auth/usecase"
	"account_backend/internal/platform/cache"
)

// NewAccountCache wraps the store with the Redis account cache.
// Without Redis the store is returned as is.
func NewAccountCache(rdb *redis.Client, cfg config.Config, accounts usecase.AccountRepository) usecase.AccountRepository {
	if rdb == nil || cfg.AccountCacheTTL == 0 {
		return accounts
	}
	return cache.NewCachingAccountRepository(rdb, cfg.AccountCacheTTL, accounts, "accounts")
}

// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"account_backend/internal/feature/auth/domain/entity"
	"account_backend/internal/feature/auth/usecase"
)

// DefaultTTL is used when NewCachingAccountRepository receives a non-positive ttl.
const DefaultTTL = time.Minute

// CachingAccountRepository decorates an AccountRepository with a Redis
// read-through cache for FindByID.
//
// Only verified accounts are cached, and the cached copy never holds the
// password hash or a pending code. FindByID callers on verified accounts
// are read-only (profile reads and the already-verified check), so the
// stripped copy is enough for them.
type CachingAccountRepository struct {
	inner     usecase.AccountRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.AccountRepository = (*CachingAccountRepository)(nil)

// NewCachingAccountRepository decorates an AccountRepository with Redis caching.
// If ttl is 0, it defaults to DefaultTTL. If namespace is empty, it uses "accounts".
func NewCachingAccountRepository(rdb *redis.Client, ttl time.Duration, inner usecase.AccountRepository, namespace string) *CachingAccountRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = "accounts"
	}
	return &CachingAccountRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// cachedAccount is the Redis representation. Secrets are left out on purpose.
type cachedAccount struct {
	ID               string    `json:"id"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	ExternalID       *string   `json:"external_id,omitempty"`
	ExternalUsername *string   `json:"external_username,omitempty"`
	PhotoURL         string    `json:"photo_url,omitempty"`
	FirstName        string    `json:"first_name"`
	LastName         *string   `json:"last_name,omitempty"`
	AuthMethod       string    `json:"auth_method"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newCachedAccount(a *entity.Account) cachedAccount {
	return cachedAccount{
		ID:               a.ID,
		Email:            a.Email,
		Phone:            a.Phone,
		ExternalID:       a.ExternalID,
		ExternalUsername: a.ExternalUsername,
		PhotoURL:         a.PhotoURL,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		AuthMethod:       string(a.AuthMethod),
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func (c cachedAccount) toEntity() *entity.Account {
	return &entity.Account{
		ID:               c.ID,
		Email:            c.Email,
		Phone:            c.Phone,
		ExternalID:       c.ExternalID,
		ExternalUsername: c.ExternalUsername,
		PhotoURL:         c.PhotoURL,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		AuthMethod:       entity.AuthMethod(c.AuthMethod),
		IsVerified:       true,
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// FindByID retrieves an account, checking cache first then falling back to the store.
func (c *CachingAccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.FindByID(ctx, id)
	}

	key := c.cacheKey(id)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var cached cachedAccount
		if err := json.Unmarshal(b, &cached); err == nil && cached.ID == id {
			return cached.toEntity(), nil
		}
		// 破損したエントリは削除する
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the store
	acc, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3) Store verified accounts only (best effort)
	if acc.IsVerified {
		if b, err := json.Marshal(newCachedAccount(acc)); err == nil {
			_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
		}
	}
	return acc, nil
}

// Update writes through and invalidates the cached entry. A write that lost
// a version race also drops the entry so the caller's reload sees the store.
func (c *CachingAccountRepository) Update(ctx context.Context, account *entity.Account) error {
	if err := c.inner.Update(ctx, account); err != nil {
		if c.rdb != nil && errors.Is(err, usecase.ErrConcurrentUpdate) {
			_ = c.rdb.Del(ctx, c.cacheKey(account.ID)).Err()
		}
		return err
	}
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, c.cacheKey(account.ID)).Err() // Best effort
	}
	return nil
}

// Create is not cached; a new account has nothing to invalidate.
func (c *CachingAccountRepository) Create(ctx context.Context, account *entity.Account) error {
	return c.inner.Create(ctx, account)
}

func (c *CachingAccountRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*entity.Account, error) {
	return c.inner.FindByEmailOrPhone(ctx, email, phone)
}

func (c *CachingAccountRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.Account, error) {
	return c.inner.FindByExternalID(ctx, externalID)
}

// cacheKey generates the cache key for an account id.
func (c *CachingAccountRepository) cacheKey(id string) string {
	return fmt.Sprintf("%s:id:%s", c.namespace, safe(id))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

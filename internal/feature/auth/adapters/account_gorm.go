// Package adapters はauthフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"account_backend/internal/feature/auth/domain/entity"
	"account_backend/internal/feature/auth/usecase"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ErrNoIdentity is returned when an account without email, phone and external id is written.
var ErrNoIdentity = errors.New("account must have an email, phone or external id")

// accountGorm はAccountRepositoryインターフェースのGORM実装です。
// PostgresとSQLiteの両方で動作します。
type accountGorm struct {
	db      *gorm.DB
	timeout time.Duration
}

// accountGormがAccountRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.AccountRepository = (*accountGorm)(nil)

// NewAccountGorm は指定されたgorm.DB接続でaccountGormの新しいインスタンスを生成します。
// timeout bounds every store call; zero disables it.
func NewAccountGorm(db *gorm.DB, timeout time.Duration) *accountGorm {
	return &accountGorm{db: db, timeout: timeout}
}

func (r *accountGorm) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create はアカウントをデータベースに追加します。
// 一意インデックスの重複は usecase.ConflictError に変換されます。
func (r *accountGorm) Create(ctx context.Context, a *entity.Account) error {
	if a == nil {
		return errors.New("account is nil")
	}
	if !a.HasIdentity() {
		return ErrNoIdentity
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	m := AccountModelFromEntity(a)
	m.Version = 1
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translateError(err)
	}
	a.ID = m.ID
	a.Version = m.Version
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

// FindByID はIDでアカウントを取得します。
func (r *accountGorm) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	if id == "" {
		return nil, usecase.ErrAccountNotFound
	}
	return r.first(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", id)
	})
}

// FindByEmailOrPhone はメールアドレスまたは電話番号でアカウントを取得します。
// 両方が一致し得る場合はメールアドレス一致の行を優先します。
func (r *accountGorm) FindByEmailOrPhone(ctx context.Context, email, phone string) (*entity.Account, error) {
	switch {
	case email != "" && phone != "":
		return r.first(ctx, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("email = ? OR phone = ?", email, phone).
				Order(clause.OrderBy{Expression: clause.Expr{
					SQL:                "CASE WHEN email = ? THEN 0 ELSE 1 END",
					Vars:               []interface{}{email},
					WithoutParentheses: true,
				}})
		})
	case email != "":
		return r.first(ctx, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("email = ?", email)
		})
	case phone != "":
		return r.first(ctx, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("phone = ?", phone)
		})
	}
	return nil, usecase.ErrAccountNotFound
}

// FindByExternalID は外部IDでアカウントを取得します。
func (r *accountGorm) FindByExternalID(ctx context.Context, externalID string) (*entity.Account, error) {
	if externalID == "" {
		return nil, usecase.ErrAccountNotFound
	}
	return r.first(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("external_id = ?", externalID)
	})
}

// Update writes every column except id and created_at in one UPDATE, so
// paired fields such as the verification code and its timestamp change together.
// The row is matched on id and version; a version mismatch means another
// request wrote the account after it was read.
func (r *accountGorm) Update(ctx context.Context, a *entity.Account) error {
	if a == nil || a.ID == "" {
		return usecase.ErrAccountNotFound
	}
	if !a.HasIdentity() {
		return ErrNoIdentity
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	m := AccountModelFromEntity(a)
	m.UpdatedAt = time.Now()
	m.Version = a.Version + 1
	res := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOrStale(ctx, a.ID)
	}
	a.UpdatedAt = m.UpdatedAt
	a.Version = m.Version
	return nil
}

// missingOrStale tells a deleted row apart from a lost version race.
func (r *accountGorm) missingOrStale(ctx context.Context, id string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&AccountModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translateError(err)
	}
	if n == 0 {
		return usecase.ErrAccountNotFound
	}
	return usecase.ErrConcurrentUpdate
}

func (r *accountGorm) first(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*entity.Account, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var m AccountModel
	if err := scope(r.db.WithContext(ctx)).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToEntity(), nil
}

// translateError maps driver errors onto usecase errors.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.ErrAccountNotFound
	}
	if field, ok := uniqueViolation(err); ok {
		return &usecase.ConflictError{Field: field}
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", usecase.ErrStoreUnavailable, err)
	}
	return err
}

// uniqueViolation reports whether err is a unique-index violation and which field caused it.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return conflictField(pgErr.ConstraintName), true
	}
	// SQLiteエラー: "UNIQUE constraint failed: accounts.email"
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return conflictField(liteErr.Error()), true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictField(err.Error()), true
	}
	return "", false
}

// conflictField maps an index name or driver message to the entity field name.
func conflictField(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "external_id"):
		return "externalId"
	case strings.Contains(s, "email"):
		return "email"
	case strings.Contains(s, "phone"):
		return "phone"
	}
	return "account"
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

package adapters

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"account_backend/internal/feature/auth/domain/entity"
)

// Unique index names. conflictField maps them back to entity field names.
const (
	indexEmail      = "idx_accounts_email"
	indexPhone      = "idx_accounts_phone"
	indexExternalID = "idx_accounts_external_id"
)

// AccountModel is the GORM model for the accounts table.
// Identity columns are nullable with partial unique indexes, so any number
// of rows may leave them NULL.
type AccountModel struct {
	ID                       string     `gorm:"primaryKey;size:36"`
	Email                    *string    `gorm:"size:255;uniqueIndex:idx_accounts_email,where:email IS NOT NULL"`
	Phone                    *string    `gorm:"size:32;uniqueIndex:idx_accounts_phone,where:phone IS NOT NULL"`
	ExternalID               *string    `gorm:"size:64;uniqueIndex:idx_accounts_external_id,where:external_id IS NOT NULL"`
	ExternalUsername         *string    `gorm:"size:255;index"`
	PhotoURL                 string     `gorm:"size:1024;not null;default:''"`
	PasswordHash             *string    `gorm:"size:255"`
	FirstName                string     `gorm:"size:255;not null"`
	LastName                 *string    `gorm:"size:255"`
	AuthMethod               string     `gorm:"size:16;not null"`
	IsVerified               bool       `gorm:"not null;default:false"`
	VerificationCode         *string    `gorm:"size:6"`
	VerificationCodeIssuedAt *time.Time
	ResetCode                *string    `gorm:"size:6"`
	ResetCodeIssuedAt        *time.Time
	Version                  int64      `gorm:"not null;default:1"`
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// TableName returns the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}

// BeforeCreate assigns a time-ordered UUID when the ID is empty.
func (m *AccountModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate account id: %w", err)
	}
	m.ID = id.String()
	return nil
}

// ToEntity converts the GORM model to a domain entity.
func (m *AccountModel) ToEntity() *entity.Account {
	return &entity.Account{
		ID:                       m.ID,
		Email:                    m.Email,
		Phone:                    m.Phone,
		ExternalID:               m.ExternalID,
		ExternalUsername:         m.ExternalUsername,
		PhotoURL:                 m.PhotoURL,
		PasswordHash:             m.PasswordHash,
		FirstName:                m.FirstName,
		LastName:                 m.LastName,
		AuthMethod:               entity.AuthMethod(m.AuthMethod),
		IsVerified:               m.IsVerified,
		VerificationCode:         m.VerificationCode,
		VerificationCodeIssuedAt: m.VerificationCodeIssuedAt,
		ResetCode:                m.ResetCode,
		ResetCodeIssuedAt:        m.ResetCodeIssuedAt,
		Version:                  m.Version,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}

// AccountModelFromEntity converts a domain entity to a GORM model.
func AccountModelFromEntity(a *entity.Account) *AccountModel {
	return &AccountModel{
		ID:                       a.ID,
		Email:                    a.Email,
		Phone:                    a.Phone,
		ExternalID:               a.ExternalID,
		ExternalUsername:         a.ExternalUsername,
		PhotoURL:                 a.PhotoURL,
		PasswordHash:             a.PasswordHash,
		FirstName:                a.FirstName,
		LastName:                 a.LastName,
		AuthMethod:               string(a.AuthMethod),
		IsVerified:               a.IsVerified,
		VerificationCode:         a.VerificationCode,
		VerificationCodeIssuedAt: a.VerificationCodeIssuedAt,
		ResetCode:                a.ResetCode,
		ResetCodeIssuedAt:        a.ResetCodeIssuedAt,
		Version:                  a.Version,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

// AutoMigrate creates or updates the accounts table and its indexes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

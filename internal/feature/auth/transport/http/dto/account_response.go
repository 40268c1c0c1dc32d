package dto

import (
	"math"
	"time"

	"account_backend/internal/feature/auth/domain/entity"
)

// AccountRes is the public projection of an account. It never carries the
// password hash or the verification code.
type AccountRes struct {
	ID               string    `json:"id"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	ExternalID       *string   `json:"externalId,omitempty"`
	ExternalUsername *string   `json:"externalUsername,omitempty"`
	PhotoURL         string    `json:"photoUrl"`
	FirstName        string    `json:"firstName"`
	LastName         *string   `json:"lastName,omitempty"`
	AuthMethod       string    `json:"authMethod"`
	IsVerified       bool      `json:"isVerified"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewAccountRes projects an account entity.
func NewAccountRes(a *entity.Account) AccountRes {
	return AccountRes{
		ID:               a.ID,
		Email:            a.Email,
		Phone:            a.Phone,
		ExternalID:       a.ExternalID,
		ExternalUsername: a.ExternalUsername,
		PhotoURL:         a.PhotoURL,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		AuthMethod:       string(a.AuthMethod),
		IsVerified:       a.IsVerified,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// RegisterRes is returned with 201 by /register.
type RegisterRes struct {
	Account  AccountRes `json:"account"`
	NextStep string     `json:"nextStep"`
	// ResendAfter is the cooldown in seconds before a new code may be requested.
	ResendAfter int `json:"resendAfter"`
}

// AuthRes is returned by every endpoint that authenticates the caller.
type AuthRes struct {
	Account AccountRes `json:"account"`
	Token   string     `json:"token"`
}

// CooldownRes is returned when a code was sent.
type CooldownRes struct {
	Message         string `json:"message"`
	CooldownSeconds int    `json:"cooldownSeconds"`
}

// MessageRes is a plain acknowledgement.
type MessageRes struct {
	Message string `json:"message"`
}

// ErrorRes is the body of every error response. Only the fields relevant
// to the error kind are set.
type ErrorRes struct {
	Error      string            `json:"error"`
	Fields     map[string]string `json:"fields,omitempty"`
	Field      string            `json:"field,omitempty"`
	AccountID  string            `json:"accountId,omitempty"`
	NextStep   string            `json:"nextStep,omitempty"`
	RetryAfter int               `json:"retryAfter,omitempty"`
}

// Seconds rounds d up to whole seconds.
func Seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

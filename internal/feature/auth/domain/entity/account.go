// Package entity defines the domain entities for the auth feature.
package entity

import "time"

// AuthMethod records which identity path created and governs an account.
type AuthMethod string

const (
	AuthMethodEmail    AuthMethod = "email"
	AuthMethodPhone    AuthMethod = "phone"
	AuthMethodExternal AuthMethod = "external"
)

// Valid reports whether m is one of the known auth methods.
func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodEmail, AuthMethodPhone, AuthMethodExternal:
		return true
	}
	return false
}

// Account represents a user account.
// Optional identity fields are pointers: nil means absent, and absence
// never collides with another account's absence.
type Account struct {
	// ID is the opaque store-assigned identifier.
	ID string

	// Email is lowercased and trimmed. Unique when present.
	Email *string

	// Phone holds digits only. Unique when present.
	Phone *string

	// ExternalID identifies a federated identity. Unique when present.
	ExternalID *string

	// ExternalUsername is the display handle from the federated identity.
	ExternalUsername *string

	PhotoURL string

	// PasswordHash is set only for password-based accounts.
	PasswordHash *string

	FirstName string
	LastName  *string

	AuthMethod AuthMethod
	IsVerified bool

	// VerificationCode and VerificationCodeIssuedAt are both set or both nil.
	VerificationCode         *string
	VerificationCodeIssuedAt *time.Time

	// ResetCode and ResetCodeIssuedAt hold an outstanding password-reset
	// code. They are kept apart from the verification code so a verified
	// account never carries a verification code.
	ResetCode         *string
	ResetCodeIssuedAt *time.Time

	// Version is bumped by the store on every update. An update whose
	// Version no longer matches the stored one is rejected.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasIdentity reports whether at least one identity field is set.
func (a *Account) HasIdentity() bool {
	return a.Email != nil || a.Phone != nil || a.ExternalID != nil
}

// HasPassword reports whether the account can take part in password login.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// HasPendingCode reports whether a verification code is outstanding.
func (a *Account) HasPendingCode() bool {
	return a.VerificationCode != nil && a.VerificationCodeIssuedAt != nil
}

// SetVerificationCode stores a freshly issued code together with its issuance time.
func (a *Account) SetVerificationCode(code string, issuedAt time.Time) {
	a.VerificationCode = &code
	a.VerificationCodeIssuedAt = &issuedAt
}

// ClearVerificationCode removes the outstanding code and its timestamp together.
func (a *Account) ClearVerificationCode() {
	a.VerificationCode = nil
	a.VerificationCodeIssuedAt = nil
}

// SetResetCode stores a password-reset code together with its issuance time.
func (a *Account) SetResetCode(code string, issuedAt time.Time) {
	a.ResetCode = &code
	a.ResetCodeIssuedAt = &issuedAt
}

// ClearResetCode removes the reset code and its timestamp together.
func (a *Account) ClearResetCode() {
	a.ResetCode = nil
	a.ResetCodeIssuedAt = nil
}

// MarkVerified moves the account to the verified state and drops any pending code.
func (a *Account) MarkVerified() {
	a.IsVerified = true
	a.ClearVerificationCode()
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

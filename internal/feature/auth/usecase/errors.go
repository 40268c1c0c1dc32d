// Package usecase implements the business logic for the auth feature.
package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials is returned when the password does not match.
	// It never says which identifier matched.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyVerified is returned by verify and resend on a verified account.
	ErrAlreadyVerified = errors.New("account is already verified")

	// ErrInvalidCode is returned when the presented code differs from the stored one.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCodeExpired is returned when the stored code is older than the freshness window.
	ErrCodeExpired = errors.New("verification code has expired")

	// ErrInvalidSignature is returned when a federated payload fails its integrity check.
	ErrInvalidSignature = errors.New("invalid federated login signature")

	// ErrConcurrentUpdate is returned by AccountRepository.Update when the
	// account changed after it was read.
	ErrConcurrentUpdate = errors.New("account was modified concurrently")

	// ErrStoreUnavailable wraps store timeouts and connection failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries every field violation found in one request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError names the identity field that collided with another account.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// UnverifiedError is returned by password login when the account has not
// completed verification. AccountID lets the client route to verification.
type UnverifiedError struct {
	AccountID string
}

func (e *UnverifiedError) Error() string {
	return "account is not verified"
}

// RateLimitedError is returned when a code is requested before the cooldown elapsed.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many requests; retry after %s", e.RetryAfter)
}

// ConfigurationError reports a deployment defect such as a missing shared secret.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "server configuration error: " + e.Reason
}

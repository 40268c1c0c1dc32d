// Package telegram verifies login widget payloads signed with a bot token.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/usecase"
)

// Mode decides what happens when a payload hash does not match.
type Mode string

const (
	// ModeStrict rejects mismatched payloads. Required in production.
	ModeStrict Mode = "strict"
	// ModePermissive logs mismatches and lets them through.
	ModePermissive Mode = "permissive"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict, "":
		return ModeStrict, nil
	case ModePermissive:
		return ModePermissive, nil
	}
	return "", fmt.Errorf("unknown signature mode %q", s)
}

// Verifier implements usecase.FederatedVerifier.
type Verifier struct {
	botToken string
	mode     Mode
	logger   *zap.Logger
}

var _ usecase.FederatedVerifier = (*Verifier)(nil)

// NewVerifier returns a Verifier. Permissive mode is announced once at construction.
func NewVerifier(botToken string, mode Mode, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode == ModePermissive {
		logger.Warn("federated login signature verification is permissive; mismatched payloads will be accepted")
	}
	return &Verifier{botToken: botToken, mode: mode, logger: logger}
}

// DataCheckString joins the key-sorted "key=value" pairs with newlines.
func DataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	return strings.Join(lines, "\n")
}

// Sign computes the hex HMAC-SHA256 of the data check string keyed by SHA-256(botToken).
func Sign(botToken string, fields map[string]string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks hash against the fields. A missing bot token is a
// configuration error in every mode.
func (v *Verifier) Verify(fields map[string]string, hash string) error {
	if v.botToken == "" {
		return &usecase.ConfigurationError{Reason: "federated login bot token is not set"}
	}
	expected := Sign(v.botToken, fields)
	if hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return nil
	}
	if v.mode == ModePermissive {
		v.logger.Warn("federated login signature mismatch accepted in permissive mode",
			zap.String("external_id", fields["id"]))
		return nil
	}
	return usecase.ErrInvalidSignature
}

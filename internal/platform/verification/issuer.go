// Package verification issues short numeric verification codes.
package verification

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

// CodeDigits is the length of every issued code.
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// Issuer generates uniformly random zero-padded codes.
type Issuer struct {
	random io.Reader
	clock  func() time.Time
}

// NewIssuer returns an Issuer backed by crypto/rand. A nil clock means time.Now.
func NewIssuer(clock func() time.Time) *Issuer {
	if clock == nil {
		clock = time.Now
	}
	return &Issuer{random: rand.Reader, clock: clock}
}

// Issue returns a code in "000000".."999999" and its issuance time.
func (i *Issuer) Issue() (string, time.Time, error) {
	n, err := rand.Int(i.random, codeSpace)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read random source: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), i.clock(), nil
}

// IsFresh reports whether a code issued at issuedAt is still within window at now.
// The boundary itself is fresh.
func (i *Issuer) IsFresh(issuedAt, now time.Time, window time.Duration) bool {
	return now.Sub(issuedAt) <= window
}

// CooldownRemaining returns how long until another code may be issued, or zero.
func (i *Issuer) CooldownRemaining(issuedAt, now time.Time, cooldown time.Duration) time.Duration {
	if rem := cooldown - now.Sub(issuedAt); rem > 0 {
		return rem
	}
	return 0
}

// Package tokenstore issues and consumes the short-lived, single-use tokens
// used for email verification, password reset, and phone verification codes.
//
// Two implementations exist: Memory for single-process deployments and
// tests, Redis for anything multi-process. Callers never learn which backing
// store is in play, and they cannot distinguish an expired token from one
// that never existed.
package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Kind partitions the token namespace. A token consumed with the wrong kind
// is destroyed without matching.
type Kind string

const (
	// KindEmailVerification tokens confirm ownership of an email address.
	KindEmailVerification Kind = "email_verification"
	// KindPasswordReset tokens authorize a password reset confirmation.
	KindPasswordReset Kind = "password_reset"
)

// ErrNotFound is returned for unknown, expired, mismatched, and already
// consumed tokens alike.
var ErrNotFound = errors.New("tokenstore: token not found or expired")

const (
	tokenBytes      = 32
	phoneCodeDigits = 6
)

// Store is the single-use token contract.
//
// Consume always removes the entry, matched or not, with one deliberate
// exception: VerifyPhoneCode leaves the stored code in place on a mismatch
// so that a genuine retry can resubmit before expiry.
type Store interface {
	// Issue generates an opaque token with at least 256 bits of entropy and
	// records {ownerID, kind, now+ttl} under it.
	Issue(ctx context.Context, ownerID string, kind Kind, ttl time.Duration) (string, error)
	// Consume removes the entry and returns its owner when the token exists,
	// has the expected kind, and has not expired; otherwise ErrNotFound.
	Consume(ctx context.Context, token string, kind Kind) (string, error)
	// IssuePhoneCode stores a fresh 6-digit code keyed by phone number,
	// overwriting any previous code for that phone.
	IssuePhoneCode(ctx context.Context, phone string, ttl time.Duration) (string, error)
	// VerifyPhoneCode reports whether the code matches; the entry is removed
	// on a match (and lazily on expiry), never on a mismatch.
	VerifyPhoneCode(ctx context.Context, phone, code string) (bool, error)
	// Sweep removes expired entries and reports how many were dropped.
	// Correctness never depends on sweeping; lookups re-check expiry.
	Sweep(ctx context.Context) (int, error)
}

// NewToken returns a 32-byte random token in base64url form.
func NewToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func newPhoneCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < phoneCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", phoneCodeDigits, n), nil
}

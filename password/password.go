// Package password provides one-way password hashing and strength
// validation. All hashing performed by the core routes through Hasher; the
// orchestrator never calls a hashing primitive directly.
package password

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost is the lowest bcrypt cost the hasher will operate at.
	MinCost = 10
	// DefaultCost is used when the caller does not configure a cost.
	DefaultCost = 10

	minLength = 8
)

// Hasher wraps bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// New returns a Hasher at the given cost, clamped to [MinCost,
// bcrypt.MaxCost]. A non-positive cost selects DefaultCost.
func New(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	if cost < MinCost {
		cost = MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the effective bcrypt cost.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of the plaintext. Hashing only fails on
// pathological input (bcrypt rejects passwords over 72 bytes).
func (h *Hasher) Hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether plaintext matches the stored hash. A malformed
// hash verifies as false rather than surfacing an error.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// StrengthResult lists every violated rule, not just the first.
type StrengthResult struct {
	Valid      bool
	Violations []string
}

// CheckStrength applies the password policy: minimum 8 characters, at least
// one uppercase letter, one lowercase letter, one digit, and one special
// character.
func CheckStrength(plaintext string) StrengthResult {
	var (
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
		hasSpecial bool
	)
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	var violations []string
	if len(plaintext) < minLength {
		violations = append(violations, "password must be at least 8 characters")
	}
	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}
	if !hasSpecial {
		violations = append(violations, "password must contain a special character")
	}

	return StrengthResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

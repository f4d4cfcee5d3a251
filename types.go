package authcore

import (
	"context"
	"strings"
	"time"
)

// User is the identity anchor. Email is always stored lowercase; the core
// never physically deletes users.
type User struct {
	ID                  string
	Email               string
	Phone               string
	PasswordHash        string
	IsActive            bool
	IsVerified          bool
	MFAEnabled          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         string
	CreatedAt           time.Time
	Profile             UserProfile
	Roles               []UserRole
}

// UserProfile is created alongside the User at registration and is immutable
// to this core thereafter.
type UserProfile struct {
	FirstName string
	LastName  string
	Locale    string
	Timezone  string
}

// UserRole is one (roleType, isActive) assignment; a user holds at most one
// row per role type.
type UserRole struct {
	Type     string
	IsActive bool
}

// DefaultRole is assigned to every new registration.
const DefaultRole = "customer"

// HasRole reports whether the user holds an active role of the given type.
func HasRole(u *User, role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.IsActive && r.Type == role {
			return true
		}
	}
	return false
}

func activeRoles(u *User) []string {
	var roles []string
	for _, r := range u.Roles {
		if r.IsActive {
			roles = append(roles, r.Type)
		}
	}
	return roles
}

// NormalizeEmail lowercases and trims an email identifier. Every lookup and
// every stored User goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RefreshToken is one session continuation credential. Rows are revoked,
// never deleted; Valid is equivalent to !IsRevoked && ExpiresAt > now.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Valid reports whether the token can still continue a session at the given
// instant.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t != nil && !t.IsRevoked && t.ExpiresAt.After(now)
}

// MFASecret is the per-user TOTP state. Backup codes are stored uppercase and
// removed as they are consumed. Login codes are checked against the secret
// only once Verified is true.
type MFASecret struct {
	UserID      string
	Secret      string
	BackupCodes []string
	Verified    bool
}

// RegisterInput is the validated registration DTO supplied by the host layer.
type RegisterInput struct {
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
	Locale    string
	Timezone  string
}

// LoginInput carries at least one of Email/Phone plus the password, and an
// MFA code when the account requires one.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
	MFACode  string
}

// ChangePasswordInput is the validated change-password DTO.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ResetConfirmInput is the validated reset confirmation DTO.
type ResetConfirmInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// PublicUser is the caller-facing user view embedded in AuthResponse.
type PublicUser struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone,omitempty"`
	IsVerified bool     `json:"is_verified"`
	MFAEnabled bool     `json:"mfa_enabled"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Roles      []string `json:"roles"`
}

// TokenPair is an access/refresh token pair; ExpiresIn is the access token
// lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	TokenPair
	User PublicUser `json:"user"`
}

// MFAProvision is returned by GenerateMFASecret. The secret and backup codes
// are shown to the user exactly once.
type MFAProvision struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// UserStore is the narrow persistence interface for user, profile, and role
// records. Implementations must keep email/phone uniqueness and must apply
// RegisterFailedLogin atomically with respect to concurrent calls for the
// same user.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	// Create persists the user together with its profile and role rows.
	// Duplicate email or phone yields ErrAccountExists.
	Create(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetVerified(ctx context.Context, userID string, verified bool) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
	// RegisterFailedLogin increments the failed-attempt counter and, when the
	// new count reaches threshold, sets lockedUntil = now + lockFor. It
	// returns the new count and whether the account is now locked.
	RegisterFailedLogin(ctx context.Context, userID string, threshold int, lockFor time.Duration) (attempts int, locked bool, err error)
	// ResetLoginState zeroes the counter, clears any lock, and stamps the
	// last successful login.
	ResetLoginState(ctx context.Context, userID, ip string, at time.Time) error
}

// RefreshTokenStore persists session continuation credentials.
type RefreshTokenStore interface {
	Create(ctx context.Context, t *RefreshToken) error
	// RevokeIfActive marks the row revoked only if it is currently valid and
	// returns it; a concurrent second caller gets ErrRefreshInvalid. Absent,
	// expired, and already-revoked tokens are indistinguishable.
	RevokeIfActive(ctx context.Context, token string) (*RefreshToken, error)
	// Revoke marks the matching row revoked. Revoking an absent or
	// already-revoked token is not an error.
	Revoke(ctx context.Context, userID, token string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// MFAStore persists TOTP secrets and backup codes. ConsumeBackupCode must be
// atomic: under concurrent calls a given code is spent at most once.
type MFAStore interface {
	// Get returns (nil, nil) when no secret exists for the user.
	Get(ctx context.Context, userID string) (*MFASecret, error)
	Save(ctx context.Context, s *MFASecret) error
	MarkVerified(ctx context.Context, userID string) error
	// Delete is idempotent.
	Delete(ctx context.Context, userID string) error
	ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error)
	ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error
}

package authcore

import "errors"

var (
	// ErrAccountExists is returned by Register when the email or phone is
	// already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrMissingIdentifier is returned by Login when neither email nor phone
	// was supplied.
	ErrMissingIdentifier = errors.New("email or phone required")
	// ErrInvalidCredentials covers unknown user and wrong password alike so
	// that callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while lockedUntil is in the future.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrMFACodeRequired is returned when an MFA-enabled user logs in without
	// a code, before any verification is attempted.
	ErrMFACodeRequired = errors.New("mfa code required")
	// ErrMFAInvalid is returned when the supplied TOTP or backup code fails
	// verification.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFANotConfigured is returned by MFA management operations when no
	// secret exists for the user.
	ErrMFANotConfigured = errors.New("mfa not configured")
	// ErrMFAAlreadyEnabled is returned when secret generation is attempted
	// over an already-verified secret.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrPasswordMismatch is returned when newPassword and confirmPassword
	// differ.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")
	// ErrWeakPassword is returned when a new password violates the strength
	// policy.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrResetTokenInvalid is returned for an unknown, expired, or already
	// consumed password reset token.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrVerificationTokenInvalid is returned for an unknown, expired, or
	// already consumed email verification token.
	ErrVerificationTokenInvalid = errors.New("invalid or expired verification token")
	// ErrPhoneCodeInvalid is returned when a phone verification code does not
	// match or has expired.
	ErrPhoneCodeInvalid = errors.New("invalid or expired phone code")
	// ErrRefreshInvalid covers absent, expired, and revoked refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrUserNotFound is returned only in post-authentication contexts where
	// the user is expected to exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrCoreNotReady indicates the Core was not built through Builder.Build.
	ErrCoreNotReady = errors.New("core not initialized")
)

// Kind classifies domain errors for the transport layer.
type Kind int

const (
	// KindInternal marks infrastructure errors outside the domain taxonomy.
	KindInternal Kind = iota
	// KindConflict maps to duplicate-resource failures.
	KindConflict
	// KindBadRequest maps to malformed input the caller should fix.
	KindBadRequest
	// KindUnauthorized maps to credential or token verification failures.
	KindUnauthorized
	// KindForbidden maps to account-state blocks distinct from bad credentials.
	KindForbidden
	// KindNotFound maps to missing entities in post-authentication contexts.
	KindNotFound
)

// KindOf maps a domain error to its Kind. Errors outside the taxonomy,
// including wrapped infrastructure errors, report KindInternal and must not
// be disguised as authentication failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrMFAAlreadyEnabled):
		return KindConflict
	case errors.Is(err, ErrMissingIdentifier),
		errors.Is(err, ErrMFACodeRequired),
		errors.Is(err, ErrMFANotConfigured),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrVerificationTokenInvalid),
		errors.Is(err, ErrPhoneCodeInvalid):
		return KindBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMFAInvalid),
		errors.Is(err, ErrRefreshInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrAccountDisabled):
		return KindForbidden
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

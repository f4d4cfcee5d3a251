package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
)

// Login authenticates by email or phone plus password, enforcing account
// state, time-based lockout, and the second factor when the account has MFA
// enabled. Unknown identifiers and wrong passwords are indistinguishable to
// the caller.
func (c *Core) Login(ctx context.Context, in LoginInput) (*AuthResponse, error) {
	u, err := c.lookupForLogin(ctx, in)
	if err != nil {
		return nil, err
	}

	if !u.IsActive {
		c.inc(MetricLoginFailure)
		c.emitAudit(ctx, u.ID, audit.ActionFailedLogin, "login on disabled account",
			map[string]string{"reason": "account_disabled"})
		return nil, ErrAccountDisabled
	}
	if u.LockedUntil != nil && u.LockedUntil.After(time.Now()) {
		c.inc(MetricLoginFailure)
		c.emitAudit(ctx, u.ID, audit.ActionFailedLogin, "login on locked account",
			map[string]string{"reason": "account_locked"})
		return nil, ErrAccountLocked
	}

	if !c.hasher.Verify(in.Password, u.PasswordHash) {
		return nil, c.handleFailedPassword(ctx, u)
	}

	if u.MFAEnabled {
		if err := c.checkSecondFactor(ctx, u, in.MFACode); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	ip := clientIPFromContext(ctx)
	if err := c.users.ResetLoginState(ctx, u.ID, ip, now); err != nil {
		return nil, fmt.Errorf("reset login state: %w", err)
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.LastLoginIP = ip

	pair, err := c.issuer.IssueTokens(ctx, u.ID, u.Email, activeRoles(u),
		ip, userAgentFromContext(ctx))
	if err != nil {
		return nil, err
	}

	c.inc(MetricLoginSuccess)
	c.emitAudit(ctx, u.ID, audit.ActionLogin, "login succeeded", nil)
	c.log.Info("login succeeded", zap.String("user_id", u.ID))

	return &AuthResponse{TokenPair: *pair, User: publicUser(u)}, nil
}

// lookupForLogin resolves the identifier. Unknown identifiers audit a failed
// login without a user id and come back as ErrInvalidCredentials.
func (c *Core) lookupForLogin(ctx context.Context, in LoginInput) (*User, error) {
	var (
		u   *User
		err error
	)
	switch {
	case in.Email != "":
		u, err = c.users.GetByEmail(ctx, in.Email)
	case in.Phone != "":
		u, err = c.users.GetByPhone(ctx, in.Phone)
	default:
		return nil, ErrMissingIdentifier
	}
	if errors.Is(err, ErrUserNotFound) {
		c.inc(MetricLoginFailure)
		c.emitAudit(ctx, "", audit.ActionFailedLogin, "unknown identifier",
			map[string]string{"reason": "user_not_found"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// handleFailedPassword counts the failure and locks the account when the
// threshold trips. The increment is atomic in the store, so concurrent
// failures across processes are all counted.
func (c *Core) handleFailedPassword(ctx context.Context, u *User) error {
	attempts, locked, err := c.users.RegisterFailedLogin(ctx, u.ID,
		c.config.Lockout.Threshold, c.config.Lockout.Duration)
	if err != nil {
		return fmt.Errorf("register failed login: %w", err)
	}

	c.inc(MetricLoginFailure)
	c.emitAudit(ctx, u.ID, audit.ActionFailedLogin, "wrong password",
		map[string]string{
			"failedAttempts": strconv.Itoa(attempts),
			"isLocked":       strconv.FormatBool(locked),
		})

	if locked {
		c.inc(MetricAccountLocked)
		c.emitAudit(ctx, u.ID, audit.ActionAccountLock, "lockout threshold reached", nil)
		c.log.Warn("account locked",
			zap.String("user_id", u.ID), zap.Int("attempts", attempts))
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// checkSecondFactor enforces MFA once the password has matched. A failed
// code does not feed the lockout counter; the password was correct, and
// counting it would let a phished password plus code guessing lock the
// owner out.
func (c *Core) checkSecondFactor(ctx context.Context, u *User, code string) error {
	if code == "" {
		c.inc(MetricMFARequired)
		return ErrMFACodeRequired
	}

	ok, usedBackup, err := c.mfa.VerifyLoginCode(ctx, u.ID, code)
	if err != nil {
		return err
	}
	if !ok {
		c.inc(MetricMFAFailure)
		c.emitAudit(ctx, u.ID, audit.ActionFailedLogin, "mfa code rejected",
			map[string]string{"reason": "invalid_mfa"})
		return ErrMFAInvalid
	}
	if usedBackup {
		c.inc(MetricBackupCodeUsed)
	}
	return nil
}

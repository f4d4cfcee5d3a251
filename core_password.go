package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/password"
	"github.com/servicely/authcore/tokenstore"
)

// ChangePassword rotates an authenticated user's password after verifying
// the current one. Every session the user holds is revoked; the caller
// re-authenticates with the new password.
func (c *Core) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	// Input checks come before the credential check, so a malformed request
	// is reported as such even when the current password is also wrong.
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if res := password.CheckStrength(in.NewPassword); !res.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(res.Violations, "; "))
	}

	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !c.hasher.Verify(in.CurrentPassword, u.PasswordHash) {
		c.emitAudit(ctx, u.ID, audit.ActionPasswordChange, "password change denied",
			map[string]string{"reason": "wrong_current_password"})
		return ErrInvalidCredentials
	}
	if in.NewPassword == in.CurrentPassword {
		return fmt.Errorf("%w: must differ from current password", ErrWeakPassword)
	}

	hash, err := c.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := c.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := c.issuer.RevokeAll(ctx, u.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	c.inc(MetricPasswordChange)
	c.emitAudit(ctx, u.ID, audit.ActionPasswordChange, "password changed", nil)
	c.log.Info("password changed", zap.String("user_id", u.ID))

	email := u.Email
	c.notifyAsync("password_changed_email", func(ctx context.Context) error {
		return c.notifier.PasswordChangedEmail(ctx, email)
	})
	return nil
}

// RequestPasswordReset issues a single-use reset token and mails the link.
// It always reports success so callers cannot probe which emails exist.
func (c *Core) RequestPasswordReset(ctx context.Context, email string) error {
	c.inc(MetricPasswordResetRequest)

	u, err := c.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		c.log.Warn("password reset lookup failed", zap.Error(err))
		return nil
	}
	if !u.IsActive {
		return nil
	}

	token, err := c.tokens.Issue(ctx, u.ID, tokenstore.KindPasswordReset, c.config.Tokens.ResetTTL)
	if err != nil {
		c.log.Warn("issue reset token failed", zap.String("user_id", u.ID), zap.Error(err))
		return nil
	}

	c.emitAudit(ctx, u.ID, audit.ActionPasswordReset, "reset requested",
		map[string]string{"phase": "request"})

	to := u.Email
	c.notifyAsync("password_reset_email", func(ctx context.Context) error {
		return c.notifier.PasswordResetEmail(ctx, to, token)
	})
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new password.
// Password validation runs before the token is consumed, so a rejected
// password does not burn the token. All sessions are revoked on success.
func (c *Core) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if res := password.CheckStrength(in.NewPassword); !res.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(res.Violations, "; "))
	}

	userID, err := c.tokens.Consume(ctx, in.Token, tokenstore.KindPasswordReset)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := c.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := c.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := c.issuer.RevokeAll(ctx, u.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	c.inc(MetricPasswordResetConfirm)
	c.emitAudit(ctx, u.ID, audit.ActionPasswordReset, "reset completed",
		map[string]string{"phase": "confirm"})
	c.log.Info("password reset completed", zap.String("user_id", u.ID))

	email := u.Email
	c.notifyAsync("password_changed_email", func(ctx context.Context) error {
		return c.notifier.PasswordChangedEmail(ctx, email)
	})
	return nil
}

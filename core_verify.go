package authcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/tokenstore"
)

// VerifyEmail consumes an email verification token and marks the owner
// verified. Unknown, expired, and already-used tokens are indistinguishable.
func (c *Core) VerifyEmail(ctx context.Context, token string) error {
	userID, err := c.tokens.Consume(ctx, token, tokenstore.KindEmailVerification)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return ErrVerificationTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}

	if err := c.users.SetVerified(ctx, userID, true); err != nil {
		return err
	}

	c.inc(MetricEmailVerified)
	c.emitAudit(ctx, userID, audit.ActionEmailVerify, "email verified", nil)
	return nil
}

// ResendVerificationEmail issues a fresh verification token for an
// unverified account and mails it. Like the reset request, it always reports
// success; already-verified and unknown addresses are silently skipped.
func (c *Core) ResendVerificationEmail(ctx context.Context, email string) error {
	u, err := c.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		c.log.Warn("verification resend lookup failed", zap.Error(err))
		return nil
	}
	if !u.IsActive || u.IsVerified {
		return nil
	}

	c.startEmailVerification(ctx, u)
	return nil
}

// SendPhoneCode issues a short numeric code for the user's phone number and
// sends it by SMS. Reissuing overwrites any previous code for the phone.
func (c *Core) SendPhoneCode(ctx context.Context, userID string) error {
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Phone == "" {
		return ErrMissingIdentifier
	}

	code, err := c.tokens.IssuePhoneCode(ctx, u.Phone, c.config.Tokens.PhoneCodeTTL)
	if err != nil {
		return fmt.Errorf("issue phone code: %w", err)
	}

	phone := u.Phone
	c.notifyAsync("phone_code_sms", func(ctx context.Context) error {
		return c.notifier.PhoneCode(ctx, phone, code)
	})
	return nil
}

// VerifyPhone matches a phone code against the one on file for the user's
// number. A mismatch leaves the stored code in place so a mistyped digit can
// be corrected before expiry.
func (c *Core) VerifyPhone(ctx context.Context, userID, code string) error {
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Phone == "" {
		return ErrMissingIdentifier
	}

	ok, err := c.tokens.VerifyPhoneCode(ctx, u.Phone, code)
	if err != nil {
		return fmt.Errorf("verify phone code: %w", err)
	}
	if !ok {
		return ErrPhoneCodeInvalid
	}

	if err := c.users.SetVerified(ctx, u.ID, true); err != nil {
		return err
	}

	c.inc(MetricPhoneVerified)
	c.emitAudit(ctx, u.ID, audit.ActionPhoneVerify, "phone verified", nil)
	return nil
}

package authcore

import (
	"context"

	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
)

// GenerateMFASecret provisions TOTP material for the user. The secret stays
// pending until ConfirmMFASetup proves the authenticator works; logins are
// not challenged in the meantime.
func (c *Core) GenerateMFASecret(ctx context.Context, userID string) (*MFAProvision, error) {
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.mfa.GenerateSecret(ctx, u.ID, u.Email)
}

// ConfirmMFASetup validates the first code from the authenticator and turns
// MFA enforcement on for the account.
func (c *Core) ConfirmMFASetup(ctx context.Context, userID, code string) error {
	if err := c.mfa.ConfirmSetup(ctx, userID, code); err != nil {
		return err
	}
	if err := c.users.SetMFAEnabled(ctx, userID, true); err != nil {
		return err
	}

	c.emitAudit(ctx, userID, audit.ActionMFAEnabled, "mfa enabled", nil)
	c.log.Info("mfa enabled", zap.String("user_id", userID))
	return nil
}

// DisableMFA requires the current password, then removes the TOTP secret and
// backup codes and stops challenging logins.
func (c *Core) DisableMFA(ctx context.Context, userID, currentPassword string) error {
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !c.hasher.Verify(currentPassword, u.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := c.mfa.Disable(ctx, u.ID); err != nil {
		return err
	}
	if err := c.users.SetMFAEnabled(ctx, u.ID, false); err != nil {
		return err
	}

	c.emitAudit(ctx, u.ID, audit.ActionMFADisabled, "mfa disabled", nil)
	c.log.Info("mfa disabled", zap.String("user_id", u.ID))
	return nil
}

// GetBackupCodes returns the user's remaining unspent backup codes.
func (c *Core) GetBackupCodes(ctx context.Context, userID string) ([]string, error) {
	return c.mfa.BackupCodes(ctx, userID)
}

// RegenerateBackupCodes replaces the backup code set; every old code, spent
// or not, stops working.
func (c *Core) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes, err := c.mfa.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.log.Info("backup codes regenerated", zap.String("user_id", userID))
	return codes, nil
}

package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MFAManager owns the TOTP lifecycle: provisioning, confirmation, login
// verification, backup codes, and teardown. It never touches the user row;
// the core flips User.MFAEnabled after calling in here.
type MFAManager struct {
	store MFAStore
	gen   *totpGenerator
	cfg   MFAConfig
}

// NewMFAManager returns an MFAManager over the given store.
func NewMFAManager(store MFAStore, cfg MFAConfig) *MFAManager {
	return &MFAManager{
		store: store,
		gen:   newTOTPGenerator(cfg),
		cfg:   cfg,
	}
}

// GenerateSecret provisions a new TOTP secret and backup code set for the
// user. An unverified leftover from an abandoned setup is overwritten; a
// verified secret yields ErrMFAAlreadyEnabled. The returned material is shown
// to the user exactly once.
func (m *MFAManager) GenerateSecret(ctx context.Context, userID, account string) (*MFAProvision, error) {
	existing, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mfa secret: %w", err)
	}
	if existing != nil && existing.Verified {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := m.gen.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	codes, err := m.newBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	err = m.store.Save(ctx, &MFASecret{
		UserID:      userID,
		Secret:      secret,
		BackupCodes: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("save mfa secret: %w", err)
	}

	return &MFAProvision{
		Secret:          secret,
		ProvisioningURI: m.gen.ProvisionURI(secret, account),
		BackupCodes:     codes,
	}, nil
}

// ConfirmSetup validates the first TOTP code against a pending secret and
// marks it verified. ErrMFANotConfigured without a pending secret,
// ErrMFAAlreadyEnabled if the secret was already confirmed, ErrMFAInvalid on
// a wrong code.
func (m *MFAManager) ConfirmSetup(ctx context.Context, userID, code string) error {
	sec, err := m.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load mfa secret: %w", err)
	}
	if sec == nil {
		return ErrMFANotConfigured
	}
	if sec.Verified {
		return ErrMFAAlreadyEnabled
	}

	ok, err := m.gen.VerifyCode(sec.Secret, strings.TrimSpace(code), time.Now())
	if err != nil {
		return fmt.Errorf("verify totp code: %w", err)
	}
	if !ok {
		return ErrMFAInvalid
	}
	return m.store.MarkVerified(ctx, userID)
}

// VerifyLoginCode checks a login-time second factor. Codes of backup length
// are tried against the backup set first; usedBackup reports whether one was
// spent. Without a verified secret it reports false with no error; the
// caller decides what that means.
func (m *MFAManager) VerifyLoginCode(ctx context.Context, userID, code string) (ok, usedBackup bool, err error) {
	sec, err := m.store.Get(ctx, userID)
	if err != nil {
		return false, false, fmt.Errorf("load mfa secret: %w", err)
	}
	if sec == nil || !sec.Verified {
		return false, false, nil
	}

	code = strings.TrimSpace(code)
	if len(code) == m.cfg.BackupCodeLength {
		ok, err := m.store.ConsumeBackupCode(ctx, userID, strings.ToUpper(code))
		if err != nil {
			return false, false, fmt.Errorf("consume backup code: %w", err)
		}
		if ok {
			return true, true, nil
		}
	}

	ok, err = m.gen.VerifyCode(sec.Secret, code, time.Now())
	if err != nil {
		return false, false, fmt.Errorf("verify totp code: %w", err)
	}
	return ok, false, nil
}

// Disable removes the user's TOTP state. Idempotent.
func (m *MFAManager) Disable(ctx context.Context, userID string) error {
	return m.store.Delete(ctx, userID)
}

// BackupCodes returns the user's remaining unspent backup codes.
func (m *MFAManager) BackupCodes(ctx context.Context, userID string) ([]string, error) {
	sec, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mfa secret: %w", err)
	}
	if sec == nil || !sec.Verified {
		return nil, ErrMFANotConfigured
	}
	return sec.BackupCodes, nil
}

// RegenerateBackupCodes replaces the user's backup code set and returns the
// new codes. Spent and unspent old codes all stop working.
func (m *MFAManager) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	sec, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mfa secret: %w", err)
	}
	if sec == nil || !sec.Verified {
		return nil, ErrMFANotConfigured
	}

	codes, err := m.newBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	if err := m.store.ReplaceBackupCodes(ctx, userID, codes); err != nil {
		return nil, fmt.Errorf("replace backup codes: %w", err)
	}
	return codes, nil
}

// newBackupCodes produces uppercase hex codes. Hex keeps them unambiguous to
// read back over the phone.
func (m *MFAManager) newBackupCodes() ([]string, error) {
	codes := make([]string, m.cfg.BackupCodeCount)
	buf := make([]byte, (m.cfg.BackupCodeLength+1)/2)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(buf))[:m.cfg.BackupCodeLength]
	}
	return codes, nil
}

package authcore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/servicely/authcore"
)

// enableMFA walks the setup flow: provision, confirm with a live code.
func enableMFA(t *testing.T, f *testFixture, userID string) *authcore.MFAProvision {
	t.Helper()
	ctx := context.Background()

	prov, err := f.core.GenerateMFASecret(ctx, userID)
	if err != nil {
		t.Fatalf("generate mfa secret: %v", err)
	}
	code := totpNow(t, prov.Secret, f.core.RuntimeConfig().MFA)
	if err := f.core.ConfirmMFASetup(ctx, userID, code); err != nil {
		t.Fatalf("confirm mfa setup: %v", err)
	}
	return prov
}

func TestMFA_SetupLifecycle(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	prov := enableMFA(t, f, resp.User.ID)

	if prov.Secret == "" {
		t.Fatal("expected a provisioned secret")
	}
	if !strings.HasPrefix(prov.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI %q", prov.ProvisioningURI)
	}
	if len(prov.BackupCodes) != f.core.RuntimeConfig().MFA.BackupCodeCount {
		t.Fatalf("expected %d backup codes, got %d",
			f.core.RuntimeConfig().MFA.BackupCodeCount, len(prov.BackupCodes))
	}

	u, err := f.users.GetByID(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.MFAEnabled {
		t.Fatal("expected MFAEnabled after confirmed setup")
	}
}

func TestMFA_PendingSecretDoesNotChallengeLogin(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	if _, err := f.core.GenerateMFASecret(ctx, resp.User.ID); err != nil {
		t.Fatalf("generate mfa secret: %v", err)
	}

	// Setup not confirmed: login proceeds without a code.
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login with pending secret: %v", err)
	}
}

func TestMFA_RegenerateOverwritesPendingSecret(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	first, err := f.core.GenerateMFASecret(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := f.core.GenerateMFASecret(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("regeneration must replace the pending secret")
	}

	// Only the newest secret confirms.
	code := totpNow(t, second.Secret, f.core.RuntimeConfig().MFA)
	if err := f.core.ConfirmMFASetup(ctx, resp.User.ID, code); err != nil {
		t.Fatalf("confirm with newest secret: %v", err)
	}
}

func TestMFA_GenerateRejectedWhenEnabled(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)
	enableMFA(t, f, resp.User.ID)

	_, err := f.core.GenerateMFASecret(ctx, resp.User.ID)
	if !errors.Is(err, authcore.ErrMFAAlreadyEnabled) {
		t.Fatalf("expected ErrMFAAlreadyEnabled, got %v", err)
	}
}

func TestMFA_ConfirmWithoutSecret(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	err := f.core.ConfirmMFASetup(ctx, resp.User.ID, "123456")
	if !errors.Is(err, authcore.ErrMFANotConfigured) {
		t.Fatalf("expected ErrMFANotConfigured, got %v", err)
	}
}

func TestMFA_LoginRequiresCode(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)
	prov := enableMFA(t, f, resp.User.ID)

	// No code: challenged, not failed.
	_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})
	if !errors.Is(err, authcore.ErrMFACodeRequired) {
		t.Fatalf("expected ErrMFACodeRequired, got %v", err)
	}

	// Wrong code.
	_, err = f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: "000000"})
	if !errors.Is(err, authcore.ErrMFAInvalid) {
		t.Fatalf("expected ErrMFAInvalid, got %v", err)
	}

	// Live code.
	code := totpNow(t, prov.Secret, f.core.RuntimeConfig().MFA)
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: code}); err != nil {
		t.Fatalf("login with live code: %v", err)
	}
}

func TestMFA_FailedCodeDoesNotFeedLockout(t *testing.T) {
	cfg := testConfig()
	f := newTestCore(t, cfg)
	ctx := context.Background()
	resp := f.register(t, ctx)
	prov := enableMFA(t, f, resp.User.ID)

	// More wrong codes than the lockout threshold; the password was right
	// every time, so the account must not lock.
	for i := 0; i < cfg.Lockout.Threshold+2; i++ {
		_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: "000000"})
		if !errors.Is(err, authcore.ErrMFAInvalid) {
			t.Fatalf("attempt %d: expected ErrMFAInvalid, got %v", i+1, err)
		}
	}

	code := totpNow(t, prov.Secret, f.core.RuntimeConfig().MFA)
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: code}); err != nil {
		t.Fatalf("expected login after mfa failures, got %v", err)
	}
}

func TestMFA_BackupCodeSingleUse(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)
	prov := enableMFA(t, f, resp.User.ID)

	backup := prov.BackupCodes[0]
	in := authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: strings.ToLower(backup)}

	// Backup codes match case-insensitively.
	if _, err := f.core.Login(ctx, in); err != nil {
		t.Fatalf("login with backup code: %v", err)
	}

	// Spent codes never match again.
	if _, err := f.core.Login(ctx, in); !errors.Is(err, authcore.ErrMFAInvalid) {
		t.Fatalf("reused backup code: expected ErrMFAInvalid, got %v", err)
	}

	remaining, err := f.core.GetBackupCodes(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("get backup codes: %v", err)
	}
	if len(remaining) != len(prov.BackupCodes)-1 {
		t.Fatalf("expected %d remaining codes, got %d", len(prov.BackupCodes)-1, len(remaining))
	}
	for _, c := range remaining {
		if c == backup {
			t.Fatal("spent code still listed")
		}
	}
}

func TestMFA_RegenerateBackupCodes(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)
	prov := enableMFA(t, f, resp.User.ID)

	fresh, err := f.core.RegenerateBackupCodes(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("regenerate backup codes: %v", err)
	}
	if len(fresh) != f.core.RuntimeConfig().MFA.BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", f.core.RuntimeConfig().MFA.BackupCodeCount, len(fresh))
	}

	// Old codes all stop working.
	_, err = f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: prov.BackupCodes[0]})
	if !errors.Is(err, authcore.ErrMFAInvalid) {
		t.Fatalf("old backup code: expected ErrMFAInvalid, got %v", err)
	}
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword, MFACode: fresh[0]}); err != nil {
		t.Fatalf("new backup code: %v", err)
	}
}

func TestMFA_DisableRequiresPassword(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)
	enableMFA(t, f, resp.User.ID)

	err := f.core.DisableMFA(ctx, resp.User.ID, "Wr0ng!Passw0rd")
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := f.core.DisableMFA(ctx, resp.User.ID, testPassword); err != nil {
		t.Fatalf("disable mfa: %v", err)
	}

	// No more challenge.
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login after disable: %v", err)
	}

	// Backup codes are gone with the secret.
	if _, err := f.core.GetBackupCodes(ctx, resp.User.ID); !errors.Is(err, authcore.ErrMFANotConfigured) {
		t.Fatalf("expected ErrMFANotConfigured, got %v", err)
	}
}

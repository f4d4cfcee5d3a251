package authcore_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/servicely/authcore"
	"github.com/servicely/authcore/audit"
)

func TestLogin_ByEmail(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	f.register(t, ctx)

	resp, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
}

func TestLogin_ByPhone(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	f.register(t, ctx)

	_, err := f.core.Login(ctx, authcore.LoginInput{Phone: testPhone, Password: testPassword})
	if err != nil {
		t.Fatalf("login by phone: %v", err)
	}
}

func TestLogin_MissingIdentifier(t *testing.T) {
	f := newTestCore(t, testConfig())

	_, err := f.core.Login(context.Background(), authcore.LoginInput{Password: testPassword})
	if !errors.Is(err, authcore.ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestLogin_UnknownUserAndWrongPasswordIndistinguishable(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	f.register(t, ctx)

	_, errUnknown := f.core.Login(ctx, authcore.LoginInput{Email: "nobody@example.com", Password: testPassword})
	_, errWrong := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})

	if !errors.Is(errUnknown, authcore.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrong, authcore.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatal("unknown-user and wrong-password errors must be indistinguishable")
	}
}

func TestLogin_LockoutAfterThreshold(t *testing.T) {
	cfg := testConfig()
	f := newTestCore(t, cfg)
	ctx := context.Background()
	resp := f.register(t, ctx)

	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
		if !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The threshold attempt trips the lock.
	_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
	if !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("threshold attempt: expected ErrAccountLocked, got %v", err)
	}

	// Even the correct password is refused while locked.
	_, err = f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})
	if !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}

	events := f.auditEvents(t, resp.User.ID, audit.ActionAccountLock)
	if len(events) != 1 {
		t.Fatalf("expected 1 ACCOUNT_LOCK event, got %d", len(events))
	}
}

func TestLogin_LockExpiresByTime(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Duration = 20 * time.Millisecond
	f := newTestCore(t, cfg)
	ctx := context.Background()
	f.register(t, ctx)

	for i := 0; i < cfg.Lockout.Threshold; i++ {
		f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
}

func TestLogin_SuccessResetsFailureCounter(t *testing.T) {
	cfg := testConfig()
	f := newTestCore(t, cfg)
	ctx := context.Background()
	f.register(t, ctx)

	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
	}
	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Counter reset means the next run of failures starts from zero.
	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
		if !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
}

func TestLogin_StampsLastLogin(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := authcore.WithClientIP(context.Background(), "203.0.113.9")
	resp := f.register(t, ctx)

	if _, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}

	u, err := f.users.GetByID(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.LastLoginAt == nil {
		t.Fatal("expected LastLoginAt set")
	}
	if u.LastLoginIP != "203.0.113.9" {
		t.Fatalf("expected last login ip recorded, got %q", u.LastLoginIP)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	if err := f.users.SetActive(resp.User.ID, false); err != nil {
		t.Fatalf("disable account: %v", err)
	}

	_, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})
	if !errors.Is(err, authcore.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLogin_FailedAttemptsAreAudited(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
	f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})

	events := f.auditEvents(t, resp.User.ID, audit.ActionFailedLogin)
	if len(events) != 2 {
		t.Fatalf("expected 2 FAILED_LOGIN events, got %d", len(events))
	}

	// Newest first: the second failure carries the running counter and the
	// lock state in its metadata.
	got := events[0].Metadata
	if got["failedAttempts"] != "2" {
		t.Fatalf("failedAttempts = %q, want %q", got["failedAttempts"], "2")
	}
	if got["isLocked"] != "false" {
		t.Fatalf("isLocked = %q, want %q", got["isLocked"], "false")
	}
}

func TestLogin_FailureReasonsRecorded(t *testing.T) {
	cfg := testConfig()
	f := newTestCore(t, cfg)
	ctx := context.Background()
	resp := f.register(t, ctx)

	// Unknown identifier: audited without a user id.
	f.core.Login(ctx, authcore.LoginInput{Email: "nobody@example.com", Password: testPassword})

	// Trip the lock, then fail once more against the locked account.
	for i := 0; i < cfg.Lockout.Threshold; i++ {
		f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: "Wr0ng!Passw0rd"})
	}
	f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})

	anon := f.auditEvents(t, "", audit.ActionFailedLogin)
	if len(anon) != 1 || anon[0].Metadata["reason"] != "user_not_found" {
		t.Fatalf("expected one user_not_found failure, got %+v", anon)
	}

	events := f.auditEvents(t, resp.User.ID, audit.ActionFailedLogin)
	if len(events) == 0 {
		t.Fatal("expected failed-login events")
	}
	if got := events[0].Metadata["reason"]; got != "account_locked" {
		t.Fatalf("newest failure reason = %q, want %q", got, "account_locked")
	}
	threshold := events[1]
	if threshold.Metadata["failedAttempts"] != strconv.Itoa(cfg.Lockout.Threshold) {
		t.Fatalf("threshold failedAttempts = %q, want %d",
			threshold.Metadata["failedAttempts"], cfg.Lockout.Threshold)
	}
	if threshold.Metadata["isLocked"] != "true" {
		t.Fatalf("threshold isLocked = %q, want %q", threshold.Metadata["isLocked"], "true")
	}
}

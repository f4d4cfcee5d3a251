package authcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/servicely/authcore"
	"github.com/servicely/authcore/audit"
)

func TestRegister_Succeeds(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()

	resp := f.register(t, ctx)

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected a token pair on registration")
	}
	if resp.User.Email != testEmail {
		t.Fatalf("expected email %q, got %q", testEmail, resp.User.Email)
	}
	if resp.User.IsVerified {
		t.Fatal("new accounts must start unverified")
	}
	if len(resp.User.Roles) != 1 || resp.User.Roles[0] != authcore.DefaultRole {
		t.Fatalf("expected default role %q, got %v", authcore.DefaultRole, resp.User.Roles)
	}

	u, err := f.users.GetByEmail(ctx, testEmail)
	if err != nil {
		t.Fatalf("lookup registered user: %v", err)
	}
	if u.PasswordHash == testPassword || u.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestRegister_NormalizesEmail(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()

	resp, err := f.core.Register(ctx, authcore.RegisterInput{
		Email:    "  Alice@EXAMPLE.com ",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.User.Email)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	f.register(t, ctx)

	_, err := f.core.Register(ctx, authcore.RegisterInput{
		Email:    "ALICE@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, authcore.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if got := f.core.Metrics().Get(authcore.MetricRegisterDuplicate); got != 1 {
		t.Fatalf("expected 1 duplicate counted, got %d", got)
	}
}

func TestRegister_DuplicatePhone(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	f.register(t, ctx)

	_, err := f.core.Register(ctx, authcore.RegisterInput{
		Email:    "bob@example.com",
		Phone:    testPhone,
		Password: testPassword,
	})
	if !errors.Is(err, authcore.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()

	for _, pwd := range []string{"short1!A", "alllowercase1!", "NoDigits!!", "NoSpecials11"} {
		_, err := f.core.Register(ctx, authcore.RegisterInput{
			Email:    "weak@example.com",
			Password: pwd,
		})
		if pwd == "short1!A" {
			// 8 chars with all classes is the floor, this one passes
			if err != nil {
				t.Fatalf("password %q: expected success, got %v", pwd, err)
			}
			continue
		}
		if !errors.Is(err, authcore.ErrWeakPassword) {
			t.Fatalf("password %q: expected ErrWeakPassword, got %v", pwd, err)
		}
	}
}

func TestRegister_MissingEmail(t *testing.T) {
	f := newTestCore(t, testConfig())

	_, err := f.core.Register(context.Background(), authcore.RegisterInput{Password: testPassword})
	if !errors.Is(err, authcore.ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestRegister_RecordsAuditEvent(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()

	resp := f.register(t, ctx)

	events := f.auditEvents(t, resp.User.ID, audit.ActionRegister)
	if len(events) != 1 {
		t.Fatalf("expected 1 REGISTER event, got %d", len(events))
	}
}

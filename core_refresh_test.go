package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/servicely/authcore"
)

func TestRefreshTokens_Rotates(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	pair, err := f.core.RefreshTokens(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken == resp.RefreshToken {
		t.Fatal("rotation must issue a new refresh token")
	}
	if pair.AccessToken == "" {
		t.Fatal("expected a new access token")
	}

	// The presented token is dead after rotation.
	if _, err := f.core.RefreshTokens(ctx, resp.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("reused token: expected ErrRefreshInvalid, got %v", err)
	}

	// The new token still works.
	if _, err := f.core.RefreshTokens(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rotated token: %v", err)
	}
}

func TestRefreshTokens_GarbageToken(t *testing.T) {
	f := newTestCore(t, testConfig())

	_, err := f.core.RefreshTokens(context.Background(), "not-a-jwt")
	if !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshTokens_ConcurrentSingleWinner(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.core.RefreshTokens(ctx, resp.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one concurrent refresh to win, got %d", wins)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	if err := f.core.Logout(ctx, resp.User.ID, resp.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.core.RefreshTokens(ctx, resp.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}

	// Logout is idempotent.
	if err := f.core.Logout(ctx, resp.User.ID, resp.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	f := newTestCore(t, testConfig())
	ctx := context.Background()
	resp := f.register(t, ctx)

	second, err := f.core.Login(ctx, authcore.LoginInput{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := f.core.LogoutAll(ctx, resp.User.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	for _, token := range []string{resp.RefreshToken, second.RefreshToken} {
		if _, err := f.core.RefreshTokens(ctx, token); !errors.Is(err, authcore.ErrRefreshInvalid) {
			t.Fatalf("expected ErrRefreshInvalid after logout-all, got %v", err)
		}
	}
	if n := f.refresh.ActiveCount(resp.User.ID); n != 0 {
		t.Fatalf("expected no active sessions, got %d", n)
	}
}

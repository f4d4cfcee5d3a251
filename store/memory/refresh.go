package memory

import (
	"context"
	"sync"
	"time"

	"github.com/servicely/authcore"
)

// RefreshTokenStore implements authcore.RefreshTokenStore in memory. Rows are
// revoked in place, never deleted, mirroring the durable implementations.
type RefreshTokenStore struct {
	mu      sync.Mutex
	byToken map[string]*authcore.RefreshToken
	byUser  map[string][]*authcore.RefreshToken
}

// NewRefreshTokenStore returns an empty RefreshTokenStore.
func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{
		byToken: make(map[string]*authcore.RefreshToken),
		byUser:  make(map[string][]*authcore.RefreshToken),
	}
}

func (s *RefreshTokenStore) Create(_ context.Context, t *authcore.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneToken(t)
	s.byToken[stored.Token] = stored
	s.byUser[stored.UserID] = append(s.byUser[stored.UserID], stored)
	return nil
}

func (s *RefreshTokenStore) RevokeIfActive(_ context.Context, token string) (*authcore.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byToken[token]
	if !ok || !row.Valid(time.Now()) {
		return nil, authcore.ErrRefreshInvalid
	}
	row.IsRevoked = true
	row.RevokedAt = timePtr(time.Now())
	return cloneToken(row), nil
}

func (s *RefreshTokenStore) Revoke(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byToken[token]
	if !ok || row.UserID != userID || row.IsRevoked {
		return nil
	}
	row.IsRevoked = true
	row.RevokedAt = timePtr(time.Now())
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, row := range s.byUser[userID] {
		if !row.IsRevoked {
			row.IsRevoked = true
			row.RevokedAt = timePtr(now)
		}
	}
	return nil
}

// ActiveCount reports how many of the user's tokens are still valid. Test
// helper.
func (s *RefreshTokenStore) ActiveCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for _, row := range s.byUser[userID] {
		if row.Valid(now) {
			n++
		}
	}
	return n
}

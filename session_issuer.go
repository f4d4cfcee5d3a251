package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicely/authcore/jwt"
)

// sessionIssuer pairs the stateless JWT manager with the refresh token store.
// Every refresh token it signs has a matching store row keyed by the signed
// string, and rotation runs through the store's single-winner revocation.
type sessionIssuer struct {
	jwt        *jwt.Manager
	tokens     RefreshTokenStore
	refreshTTL time.Duration
}

func newSessionIssuer(manager *jwt.Manager, tokens RefreshTokenStore, refreshTTL time.Duration) *sessionIssuer {
	return &sessionIssuer{
		jwt:        manager,
		tokens:     tokens,
		refreshTTL: refreshTTL,
	}
}

// IssueTokens mints an access/refresh pair and persists the refresh row.
func (s *sessionIssuer) IssueTokens(ctx context.Context, userID, email string, roles []string, ip, userAgent string) (*TokenPair, error) {
	access, err := s.jwt.SignAccess(userID, email, roles)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rowID := uuid.NewString()
	refresh, err := s.jwt.SignRefresh(userID, email, roles, rowID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	now := time.Now()
	row := &RefreshToken{
		ID:        rowID,
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: now.Add(s.refreshTTL),
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
	}, nil
}

// Refresh rotates a refresh token. The presented token is revoked and a new
// pair is issued from its claims; of concurrent presentations of the same
// token only one succeeds. Returns the pair and the subject user id.
func (s *sessionIssuer) Refresh(ctx context.Context, token, ip, userAgent string) (*TokenPair, string, error) {
	claims, err := s.jwt.ParseRefresh(token)
	if err != nil {
		return nil, "", ErrRefreshInvalid
	}

	row, err := s.tokens.RevokeIfActive(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRefreshInvalid) {
			return nil, "", ErrRefreshInvalid
		}
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}

	pair, err := s.IssueTokens(ctx, row.UserID, claims.Email, claims.Roles, ip, userAgent)
	if err != nil {
		return nil, "", err
	}
	return pair, row.UserID, nil
}

// Revoke invalidates one refresh token belonging to the user. Unknown and
// already-revoked tokens are not an error.
func (s *sessionIssuer) Revoke(ctx context.Context, userID, token string) error {
	return s.tokens.Revoke(ctx, userID, token)
}

// RevokeAll invalidates every session continuation the user holds.
func (s *sessionIssuer) RevokeAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

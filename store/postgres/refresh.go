package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicely/authcore"
)

// RefreshTokenStore implements authcore.RefreshTokenStore on PostgreSQL.
type RefreshTokenStore struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenStore returns a RefreshTokenStore backed by pool.
func NewRefreshTokenStore(pool *pgxpool.Pool) *RefreshTokenStore {
	return &RefreshTokenStore{pool: pool}
}

func (s *RefreshTokenStore) Create(ctx context.Context, t *authcore.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO refresh_tokens (id, user_id, token, expires_at, is_revoked, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.Token, t.ExpiresAt, t.IsRevoked, t.IPAddress, t.UserAgent, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RevokeIfActive is the rotation guard. The WHERE clause only matches a live
// row, so of any number of concurrent presentations of the same token exactly
// one gets the row back and the rest see ErrRefreshInvalid.
func (s *RefreshTokenStore) RevokeIfActive(ctx context.Context, token string) (*authcore.RefreshToken, error) {
	const q = `
UPDATE refresh_tokens
SET is_revoked = TRUE, revoked_at = now()
WHERE token = $1 AND is_revoked = FALSE AND expires_at > now()
RETURNING id, user_id, token, expires_at, is_revoked, revoked_at, ip_address, user_agent, created_at`

	var t authcore.RefreshToken
	err := s.pool.QueryRow(ctx, q, token).Scan(
		&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.IsRevoked, &t.RevokedAt,
		&t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authcore.ErrRefreshInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return &t, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, userID, token string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE refresh_tokens
SET is_revoked = TRUE, revoked_at = now()
WHERE token = $1 AND user_id = $2 AND is_revoked = FALSE`, token, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE refresh_tokens
SET is_revoked = TRUE, revoked_at = now()
WHERE user_id = $1 AND is_revoked = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

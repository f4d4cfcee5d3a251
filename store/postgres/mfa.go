package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicely/authcore"
)

// MFAStore implements authcore.MFAStore on PostgreSQL. Backup codes live in
// a text array so consumption is one statement.
type MFAStore struct {
	pool *pgxpool.Pool
}

// NewMFAStore returns an MFAStore backed by pool.
func NewMFAStore(pool *pgxpool.Pool) *MFAStore {
	return &MFAStore{pool: pool}
}

func (s *MFAStore) Get(ctx context.Context, userID string) (*authcore.MFASecret, error) {
	var sec authcore.MFASecret
	err := s.pool.QueryRow(ctx, `
SELECT user_id, secret, backup_codes, verified
FROM mfa_secrets
WHERE user_id = $1`, userID).
		Scan(&sec.UserID, &sec.Secret, &sec.BackupCodes, &sec.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mfa secret: %w", err)
	}
	return &sec, nil
}

func (s *MFAStore) Save(ctx context.Context, sec *authcore.MFASecret) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO mfa_secrets (user_id, secret, backup_codes, verified)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET secret = EXCLUDED.secret,
    backup_codes = EXCLUDED.backup_codes,
    verified = EXCLUDED.verified`,
		sec.UserID, sec.Secret, sec.BackupCodes, sec.Verified)
	if err != nil {
		return fmt.Errorf("save mfa secret: %w", err)
	}
	return nil
}

func (s *MFAStore) MarkVerified(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mfa_secrets SET verified = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark mfa verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrMFANotConfigured
	}
	return nil
}

func (s *MFAStore) Delete(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mfa_secrets WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete mfa secret: %w", err)
	}
	return nil
}

// ConsumeBackupCode removes the code in one statement; the WHERE clause only
// matches while the code is still present, so a code is spent at most once.
func (s *MFAStore) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE mfa_secrets
SET backup_codes = array_remove(backup_codes, $2)
WHERE user_id = $1 AND $2 = ANY(backup_codes)`, userID, code)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *MFAStore) ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mfa_secrets SET backup_codes = $2 WHERE user_id = $1`, userID, codes)
	if err != nil {
		return fmt.Errorf("replace backup codes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrMFANotConfigured
	}
	return nil
}

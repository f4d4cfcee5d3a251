package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicely/authcore"
)

// UserStore implements authcore.UserStore on PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a UserStore backed by pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `u.id, u.email, u.phone, u.password_hash, u.is_active, u.is_verified,
       u.mfa_enabled, u.failed_login_attempts, u.locked_until, u.last_login_at,
       u.last_login_ip, u.created_at,
       p.first_name, p.last_name, p.locale, p.timezone`

const userFrom = `
FROM users u
JOIN user_profiles p ON p.user_id = u.id`

func (s *UserStore) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.getBy(ctx, "u.id = $1", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.getBy(ctx, "u.email = $1", authcore.NormalizeEmail(email))
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (*authcore.User, error) {
	return s.getBy(ctx, "u.phone = $1", phone)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*authcore.User, error) {
	q := "SELECT " + userColumns + userFrom + " WHERE " + where

	var (
		u     authcore.User
		phone *string
	)
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Email, &phone, &u.PasswordHash, &u.IsActive, &u.IsVerified,
		&u.MFAEnabled, &u.FailedLoginAttempts, &u.LockedUntil, &u.LastLoginAt,
		&u.LastLoginIP, &u.CreatedAt,
		&u.Profile.FirstName, &u.Profile.LastName, &u.Profile.Locale, &u.Profile.Timezone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if phone != nil {
		u.Phone = *phone
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role_type, is_active FROM user_roles WHERE user_id = $1 ORDER BY role_type`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r authcore.UserRole
		if err := rows.Scan(&r.Type, &r.IsActive); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		u.Roles = append(u.Roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, u *authcore.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var phone *string
	if u.Phone != "" {
		phone = &u.Phone
	}
	_, err = tx.Exec(ctx, `
INSERT INTO users (id, email, phone, password_hash, is_active, is_verified, mfa_enabled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, authcore.NormalizeEmail(u.Email), phone, u.PasswordHash,
		u.IsActive, u.IsVerified, u.MFAEnabled, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrAccountExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO user_profiles (user_id, first_name, last_name, locale, timezone)
VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Profile.FirstName, u.Profile.LastName, u.Profile.Locale, u.Profile.Timezone)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	for _, r := range u.Roles {
		_, err = tx.Exec(ctx, `
INSERT INTO user_roles (user_id, role_type, is_active)
VALUES ($1, $2, $3)`, u.ID, r.Type, r.IsActive)
		if err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

func (s *UserStore) SetVerified(ctx context.Context, userID string, verified bool) error {
	return s.execOne(ctx, `UPDATE users SET is_verified = $2 WHERE id = $1`, userID, verified)
}

func (s *UserStore) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.execOne(ctx, `UPDATE users SET mfa_enabled = $2 WHERE id = $1`, userID, enabled)
}

// RegisterFailedLogin is a single UPDATE so concurrent failures for the same
// user serialize on the row and every increment is counted exactly once.
func (s *UserStore) RegisterFailedLogin(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, bool, error) {
	const q = `
UPDATE users
SET failed_login_attempts = failed_login_attempts + 1,
    locked_until = CASE
        WHEN $2 > 0 AND failed_login_attempts + 1 >= $2
            THEN now() + make_interval(secs => $3)
        ELSE locked_until
    END
WHERE id = $1
RETURNING failed_login_attempts, locked_until IS NOT NULL AND locked_until > now()`

	var (
		attempts int
		locked   bool
	)
	err := s.pool.QueryRow(ctx, q, userID, threshold, lockFor.Seconds()).Scan(&attempts, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, authcore.ErrUserNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("register failed login: %w", err)
	}
	return attempts, locked, nil
}

func (s *UserStore) ResetLoginState(ctx context.Context, userID, ip string, at time.Time) error {
	return s.execOne(ctx, `
UPDATE users
SET failed_login_attempts = 0,
    locked_until = NULL,
    last_login_at = $2,
    last_login_ip = $3
WHERE id = $1`, userID, at, ip)
}

func (s *UserStore) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

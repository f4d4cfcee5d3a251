package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicely/authcore/audit"
)

// AuditStore implements audit.Store on PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore returns an AuditStore backed by pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Insert(ctx context.Context, e *audit.Event) error {
	var userID *string
	if e.UserID != "" {
		userID = &e.UserID
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO audit_events (id, user_id, action, description, ip_address, user_agent, metadata, is_suspicious, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, userID, string(e.Action), e.Description, e.IPAddress, e.UserAgent,
		meta, e.IsSuspicious, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const eventColumns = `id, user_id, action, description, ip_address, user_agent, metadata, is_suspicious, created_at`

func (s *AuditStore) ByUser(ctx context.Context, userID string, action audit.Action, limit, offset int) ([]audit.Event, error) {
	q := `
SELECT ` + eventColumns + `
FROM audit_events
WHERE user_id = $1 AND ($2 = '' OR action = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, q, userID, string(action), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func (s *AuditStore) Suspicious(ctx context.Context, limit, offset int) ([]audit.Event, error) {
	q := `
SELECT ` + eventColumns + `
FROM audit_events
WHERE is_suspicious
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func (s *AuditStore) FailedLoginsSince(ctx context.Context, ip string, since time.Time) ([]audit.Event, error) {
	q := `
SELECT ` + eventColumns + `
FROM audit_events
WHERE action = $1 AND created_at >= $2 AND ($3 = '' OR ip_address = $3)
ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, string(audit.ActionFailedLogin), since, ip)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func (s *AuditStore) MarkSuspicious(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE audit_events
SET is_suspicious = TRUE,
    metadata = metadata || jsonb_build_object('reason', $2::text)
WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("mark audit event suspicious: %w", err)
	}
	return nil
}

func (s *AuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]audit.Event, error) {
	defer rows.Close()
	var out []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			userID *string
			action string
		)
		err := rows.Scan(&e.ID, &userID, &action, &e.Description, &e.IPAddress,
			&e.UserAgent, &e.Metadata, &e.IsSuspicious, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if userID != nil {
			e.UserID = *userID
		}
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return out, nil
}

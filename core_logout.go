package authcore

import (
	"context"
	"fmt"

	"github.com/servicely/authcore/audit"
)

// Logout revokes one refresh token belonging to the user. Revoking a token
// that is already gone is not an error; logout is idempotent.
func (c *Core) Logout(ctx context.Context, userID, refreshToken string) error {
	if err := c.issuer.Revoke(ctx, userID, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	c.inc(MetricLogout)
	c.emitAudit(ctx, userID, audit.ActionLogout, "logout", nil)
	return nil
}

// LogoutAll revokes every session continuation the user holds.
func (c *Core) LogoutAll(ctx context.Context, userID string) error {
	if err := c.issuer.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	c.inc(MetricLogout)
	c.emitAudit(ctx, userID, audit.ActionLogout, "logout all sessions", nil)
	return nil
}

// RefreshTokens rotates a refresh token into a new access/refresh pair. The
// presented token is dead afterwards whether or not rotation succeeds; under
// concurrent presentation exactly one caller wins and the rest get
// ErrRefreshInvalid.
func (c *Core) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, userID, err := c.issuer.Refresh(ctx, refreshToken,
		clientIPFromContext(ctx), userAgentFromContext(ctx))
	if err != nil {
		c.inc(MetricRefreshFailure)
		return nil, err
	}

	c.inc(MetricRefreshSuccess)
	c.emitAudit(ctx, userID, audit.ActionTokenRefresh, "refresh token rotated", nil)
	return pair, nil
}

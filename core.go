package authcore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/jwt"
	"github.com/servicely/authcore/notify"
	"github.com/servicely/authcore/password"
	"github.com/servicely/authcore/tokenstore"
)

// Core is the authentication engine. Construct it with Builder; the zero
// value is not usable. All methods are safe for concurrent use.
type Core struct {
	config Config
	log    *zap.Logger

	users    UserStore
	refresh  RefreshTokenStore
	mfaStore MFAStore

	hasher   *password.Hasher
	mfa      *MFAManager
	issuer   *sessionIssuer
	tokens   tokenstore.Store
	audit    *audit.Recorder
	notifier *notify.Notifier
	metrics  *Metrics
}

// Audit exposes the recorder for its query and retention surface.
func (c *Core) Audit() *audit.Recorder {
	return c.audit
}

// Metrics exposes the counter block.
func (c *Core) Metrics() *Metrics {
	return c.metrics
}

// MFA exposes the MFA manager. The Core's own methods cover the standard
// lifecycle; direct access exists for hosts that need the pieces.
func (c *Core) MFA() *MFAManager {
	return c.mfa
}

// JWT exposes the token manager so transport middleware can verify access
// tokens without going through the Core.
func (c *Core) JWT() *jwt.Manager {
	return c.issuer.jwt
}

// Close flushes the audit recorder. Call it on shutdown; in-flight events
// are written before it returns.
func (c *Core) Close() {
	if c.audit != nil {
		c.audit.Close()
	}
}

// emitAudit records one event with the request metadata carried in ctx.
func (c *Core) emitAudit(ctx context.Context, userID string, action audit.Action, description string, meta map[string]string) {
	c.audit.Record(ctx, audit.Event{
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   clientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
		Metadata:    meta,
	})
}

// notifyAsync runs a notification send off the request path. Failures are
// logged and otherwise swallowed; no auth flow depends on delivery.
func (c *Core) notifyAsync(op string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			c.log.Warn("notification send failed", zap.String("op", op), zap.Error(err))
		}
	}()
}

func (c *Core) inc(id MetricID) {
	c.metrics.Inc(id)
}

func publicUser(u *User) PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Phone:      u.Phone,
		IsVerified: u.IsVerified,
		MFAEnabled: u.MFAEnabled,
		FirstName:  u.Profile.FirstName,
		LastName:   u.Profile.LastName,
		Roles:      activeRoles(u),
	}
}

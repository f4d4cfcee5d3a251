package authcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/password"
	"github.com/servicely/authcore/tokenstore"
)

// Register creates a user with its profile and the default role, issues a
// first session, and kicks off email verification. The email is stored
// lowercase; duplicate email or phone yields ErrAccountExists.
func (c *Core) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrMissingIdentifier
	}

	if res := password.CheckStrength(in.Password); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(res.Violations, "; "))
	}

	hash, err := c.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		Profile: UserProfile{
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Locale:    in.Locale,
			Timezone:  in.Timezone,
		},
		Roles: []UserRole{{Type: DefaultRole, IsActive: true}},
	}

	if err := c.users.Create(ctx, u); err != nil {
		if err == ErrAccountExists {
			c.inc(MetricRegisterDuplicate)
		}
		return nil, err
	}

	pair, err := c.issuer.IssueTokens(ctx, u.ID, u.Email, activeRoles(u),
		clientIPFromContext(ctx), userAgentFromContext(ctx))
	if err != nil {
		return nil, err
	}

	c.inc(MetricRegisterSuccess)
	c.emitAudit(ctx, u.ID, audit.ActionRegister, "account registered", nil)
	c.startEmailVerification(ctx, u)

	c.log.Info("user registered", zap.String("user_id", u.ID))

	return &AuthResponse{TokenPair: *pair, User: publicUser(u)}, nil
}

// startEmailVerification issues a verification token and mails the link.
// Token issue failures are logged, not surfaced; the user can request a
// resend.
func (c *Core) startEmailVerification(ctx context.Context, u *User) {
	token, err := c.tokens.Issue(ctx, u.ID, tokenstore.KindEmailVerification, c.config.Tokens.VerificationTTL)
	if err != nil {
		c.log.Warn("issue verification token failed",
			zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	email := u.Email
	c.notifyAsync("verification_email", func(ctx context.Context) error {
		return c.notifier.VerificationEmail(ctx, email, token)
	})
}

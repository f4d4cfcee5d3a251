package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/jwt"
	"github.com/servicely/authcore/notify"
	"github.com/servicely/authcore/password"
	"github.com/servicely/authcore/tokenstore"
)

// Builder assembles a Core. Stores are required; everything else defaults to
// something sensible. A Builder is single-use.
type Builder struct {
	config Config
	log    *zap.Logger
	redis  *redis.Client

	users    UserStore
	refresh  RefreshTokenStore
	mfaStore MFAStore

	auditStore audit.Store
	auditSink  audit.Sink

	tokens   tokenstore.Store
	notifier *notify.Notifier

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero-valued sections are
// filled from the defaults at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithRedis provides a redis client. Unless WithTokenStore overrides it, the
// single-use token store runs on this client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user persistence backend. Required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithRefreshTokenStore sets the refresh token backend. Required.
func (b *Builder) WithRefreshTokenStore(s RefreshTokenStore) *Builder {
	b.refresh = s
	return b
}

// WithMFAStore sets the TOTP secret backend. Required.
func (b *Builder) WithMFAStore(s MFAStore) *Builder {
	b.mfaStore = s
	return b
}

// WithAuditStore sets the audit persistence backend. Without one, recording
// is disabled and the audit queries error.
func (b *Builder) WithAuditStore(s audit.Store) *Builder {
	b.auditStore = s
	return b
}

// WithAuditSink mirrors every recorded event to a sink.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithTokenStore sets the single-use token backend explicitly, overriding
// the redis-derived default.
func (b *Builder) WithTokenStore(s tokenstore.Store) *Builder {
	b.tokens = s
	return b
}

// WithNotifier sets the outbound notifier. Without one, no mail or SMS is
// sent and the flows proceed silently.
func (b *Builder) WithNotifier(n *notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMetricsEnabled toggles the counter block.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the components, and returns the
// Core. The Builder cannot be reused afterwards.
func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token store required")
	}
	if b.mfaStore == nil {
		return nil, errors.New("mfa store required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	tokens := b.tokens
	if tokens == nil {
		if b.redis != nil {
			tokens = tokenstore.NewRedis(b.redis)
		} else {
			tokens = tokenstore.NewMemory()
		}
	}

	auditCfg := cfg.Audit
	if b.auditStore == nil {
		auditCfg.Enabled = false
	}

	core := &Core{
		config:   cfg,
		log:      log,
		users:    b.users,
		refresh:  b.refresh,
		mfaStore: b.mfaStore,
		hasher:   password.New(cfg.Password.Cost),
		mfa:      NewMFAManager(b.mfaStore, cfg.MFA),
		issuer:   newSessionIssuer(manager, b.refresh, cfg.JWT.RefreshTTL),
		tokens:   tokens,
		audit:    audit.NewRecorder(auditCfg, b.auditStore, b.auditSink, log),
		notifier: b.notifier,
		metrics:  NewMetrics(cfg.Metrics),
	}
	return core, nil
}

// applyDefaults fills zero-valued sections so WithConfig callers only need
// to set what they care about.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Password.Cost == 0 {
		cfg.Password.Cost = def.Password.Cost
	}
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if cfg.JWT.RefreshTTL == 0 {
		cfg.JWT.RefreshTTL = def.JWT.RefreshTTL
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = def.JWT.Issuer
	}
	if cfg.Lockout.Threshold == 0 {
		cfg.Lockout.Threshold = def.Lockout.Threshold
	}
	if cfg.Lockout.Duration == 0 {
		cfg.Lockout.Duration = def.Lockout.Duration
	}
	if cfg.Tokens.ResetTTL == 0 {
		cfg.Tokens.ResetTTL = def.Tokens.ResetTTL
	}
	if cfg.Tokens.VerificationTTL == 0 {
		cfg.Tokens.VerificationTTL = def.Tokens.VerificationTTL
	}
	if cfg.Tokens.PhoneCodeTTL == 0 {
		cfg.Tokens.PhoneCodeTTL = def.Tokens.PhoneCodeTTL
	}
	if cfg.MFA.Issuer == "" {
		cfg.MFA.Issuer = def.MFA.Issuer
	}
	if cfg.MFA.Digits == 0 {
		cfg.MFA.Digits = def.MFA.Digits
	}
	if cfg.MFA.Period == 0 {
		cfg.MFA.Period = def.MFA.Period
	}
	if cfg.MFA.BackupCodeCount == 0 {
		cfg.MFA.BackupCodeCount = def.MFA.BackupCodeCount
	}
	if cfg.MFA.BackupCodeLength == 0 {
		cfg.MFA.BackupCodeLength = def.MFA.BackupCodeLength
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
}

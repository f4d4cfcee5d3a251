package authcore

import (
	"errors"
	"time"

	"github.com/servicely/authcore/audit"
)

// Config carries every tunable the core needs from its environment.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Password PasswordConfig
	JWT      JWTConfig
	Lockout  LockoutConfig
	Tokens   TokenConfig
	MFA      MFAConfig
	Audit    audit.Config
	Metrics  MetricsConfig
}

// PasswordConfig controls the bcrypt cost used for all hashing performed by
// the core. The hasher itself enforces a floor of 10; the core defaults to
// 12.
type PasswordConfig struct {
	Cost int
}

// JWTConfig holds the signing material and lifetimes for access and refresh
// tokens. The two secrets must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// LockoutConfig controls the failed-password lockout policy. Lockout expires
// by time alone; no explicit unlock exists.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// TokenConfig holds the lifetimes of the short-lived single-use tokens.
type TokenConfig struct {
	ResetTTL        time.Duration
	VerificationTTL time.Duration
	PhoneCodeTTL    time.Duration
}

// MFAConfig controls TOTP and backup code generation.
type MFAConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Skew             int
	BackupCodeCount  int
	BackupCodeLength int
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Cost: 12,
		},
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Tokens: TokenConfig{
			ResetTTL:        time.Hour,
			VerificationTTL: 24 * time.Hour,
			PhoneCodeTTL:    10 * time.Minute,
		},
		MFA: MFAConfig{
			Issuer:           "Servicely",
			Digits:           6,
			Period:           30,
			Skew:             2,
			BackupCodeCount:  10,
			BackupCodeLength: 8,
		},
		Audit: audit.Config{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the core cannot operate under. Missing
// values that have safe defaults are filled by defaultConfig, not here.
func (c *Config) Validate() error {
	if len(c.JWT.AccessSecret) == 0 {
		return errors.New("jwt access secret required")
	}
	if len(c.JWT.RefreshSecret) == 0 {
		return errors.New("jwt refresh secret required")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("jwt access and refresh secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt TTLs must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt refresh TTL must exceed access TTL")
	}
	if c.Lockout.Threshold <= 0 {
		return errors.New("lockout threshold must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Tokens.ResetTTL <= 0 || c.Tokens.VerificationTTL <= 0 || c.Tokens.PhoneCodeTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("mfa digits must be 6 or 8")
	}
	if c.MFA.Period <= 0 {
		return errors.New("mfa period must be positive")
	}
	if c.MFA.Skew < 0 {
		return errors.New("mfa skew must be non-negative")
	}
	if c.MFA.BackupCodeCount <= 0 || c.MFA.BackupCodeLength < 8 {
		return errors.New("mfa backup code policy invalid")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.AccessSecret = cloneBytes(c.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(c.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

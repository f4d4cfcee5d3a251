package authcore

import "time"

// Hooks for the external test package. None of these exist outside test
// builds.

var (
	DefaultConfig = defaultConfig
	CloneConfig   = cloneConfig
)

// RuntimeConfig returns the configuration the core was built with, defaults
// applied.
func (c *Core) RuntimeConfig() Config {
	return c.config
}

// TOTPCode computes the code an authenticator app would show for a base32
// seed at time t.
func TOTPCode(secretBase32 string, t time.Time, cfg MFAConfig) (string, error) {
	secret, err := b32.DecodeString(secretBase32)
	if err != nil {
		return "", err
	}
	return hotpCode(secret, t.Unix()/int64(cfg.Period), cfg.Digits), nil
}

package authcore

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFromEnv builds a Config from environment variables, loading a .env
// file first when one is present. Unset variables keep their defaults.
//
// Recognized variables: AUTH_JWT_ACCESS_SECRET, AUTH_JWT_REFRESH_SECRET,
// AUTH_JWT_ACCESS_TTL, AUTH_JWT_REFRESH_TTL, AUTH_JWT_ISSUER,
// AUTH_PASSWORD_COST, AUTH_LOCKOUT_THRESHOLD, AUTH_LOCKOUT_DURATION,
// AUTH_RESET_TTL, AUTH_VERIFICATION_TTL, AUTH_PHONE_CODE_TTL,
// AUTH_MFA_ISSUER.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	cfg.JWT.AccessSecret = []byte(os.Getenv("AUTH_JWT_ACCESS_SECRET"))
	cfg.JWT.RefreshSecret = []byte(os.Getenv("AUTH_JWT_REFRESH_SECRET"))

	var err error
	if cfg.JWT.AccessTTL, err = envDuration("AUTH_JWT_ACCESS_TTL", cfg.JWT.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.JWT.RefreshTTL, err = envDuration("AUTH_JWT_REFRESH_TTL", cfg.JWT.RefreshTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTH_JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if cfg.Password.Cost, err = envInt("AUTH_PASSWORD_COST", cfg.Password.Cost); err != nil {
		return Config{}, err
	}
	if cfg.Lockout.Threshold, err = envInt("AUTH_LOCKOUT_THRESHOLD", cfg.Lockout.Threshold); err != nil {
		return Config{}, err
	}
	if cfg.Lockout.Duration, err = envDuration("AUTH_LOCKOUT_DURATION", cfg.Lockout.Duration); err != nil {
		return Config{}, err
	}
	if cfg.Tokens.ResetTTL, err = envDuration("AUTH_RESET_TTL", cfg.Tokens.ResetTTL); err != nil {
		return Config{}, err
	}
	if cfg.Tokens.VerificationTTL, err = envDuration("AUTH_VERIFICATION_TTL", cfg.Tokens.VerificationTTL); err != nil {
		return Config{}, err
	}
	if cfg.Tokens.PhoneCodeTTL, err = envDuration("AUTH_PHONE_CODE_TTL", cfg.Tokens.PhoneCodeTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTH_MFA_ISSUER"); v != "" {
		cfg.MFA.Issuer = v
	}

	return cfg, nil
}

type yamlConfig struct {
	Password struct {
		Cost int `yaml:"cost"`
	} `yaml:"password"`
	JWT struct {
		AccessSecret  string        `yaml:"access_secret"`
		RefreshSecret string        `yaml:"refresh_secret"`
		AccessTTL     time.Duration `yaml:"access_ttl"`
		RefreshTTL    time.Duration `yaml:"refresh_ttl"`
		Issuer        string        `yaml:"issuer"`
	} `yaml:"jwt"`
	Lockout struct {
		Threshold int           `yaml:"threshold"`
		Duration  time.Duration `yaml:"duration"`
	} `yaml:"lockout"`
	Tokens struct {
		ResetTTL        time.Duration `yaml:"reset_ttl"`
		VerificationTTL time.Duration `yaml:"verification_ttl"`
		PhoneCodeTTL    time.Duration `yaml:"phone_code_ttl"`
	} `yaml:"tokens"`
	MFA struct {
		Issuer string `yaml:"issuer"`
	} `yaml:"mfa"`
}

// LoadConfigFile reads a YAML config file over the defaults. Zero values in
// the file leave the corresponding default untouched.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()
	if y.Password.Cost > 0 {
		cfg.Password.Cost = y.Password.Cost
	}
	if y.JWT.AccessSecret != "" {
		cfg.JWT.AccessSecret = []byte(y.JWT.AccessSecret)
	}
	if y.JWT.RefreshSecret != "" {
		cfg.JWT.RefreshSecret = []byte(y.JWT.RefreshSecret)
	}
	if y.JWT.AccessTTL > 0 {
		cfg.JWT.AccessTTL = y.JWT.AccessTTL
	}
	if y.JWT.RefreshTTL > 0 {
		cfg.JWT.RefreshTTL = y.JWT.RefreshTTL
	}
	if y.JWT.Issuer != "" {
		cfg.JWT.Issuer = y.JWT.Issuer
	}
	if y.Lockout.Threshold > 0 {
		cfg.Lockout.Threshold = y.Lockout.Threshold
	}
	if y.Lockout.Duration > 0 {
		cfg.Lockout.Duration = y.Lockout.Duration
	}
	if y.Tokens.ResetTTL > 0 {
		cfg.Tokens.ResetTTL = y.Tokens.ResetTTL
	}
	if y.Tokens.VerificationTTL > 0 {
		cfg.Tokens.VerificationTTL = y.Tokens.VerificationTTL
	}
	if y.Tokens.PhoneCodeTTL > 0 {
		cfg.Tokens.PhoneCodeTTL = y.Tokens.PhoneCodeTTL
	}
	if y.MFA.Issuer != "" {
		cfg.MFA.Issuer = y.MFA.Issuer
	}

	return cfg, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

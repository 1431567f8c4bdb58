package goIdentity

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides mirrors the subset of [Config] an operator usually controls
// per deployment. Everything else keeps its [DefaultConfig] value and is
// adjusted in code.
type envOverrides struct {
	SigningSecret string `env:"GOIDENTITY_SIGNING_SECRET"`
	Issuer        string `env:"GOIDENTITY_ISSUER"`
	Audience      string `env:"GOIDENTITY_AUDIENCE"`

	MaxFailedAttempts int           `env:"GOIDENTITY_MAX_FAILED_ATTEMPTS"`
	LockoutDuration   time.Duration `env:"GOIDENTITY_LOCKOUT_DURATION"`

	SessionLifetime time.Duration `env:"GOIDENTITY_SESSION_LIFETIME"`

	PasswordMinLength int `env:"GOIDENTITY_PASSWORD_MIN_LENGTH"`
	PasswordPoolSize  int `env:"GOIDENTITY_PASSWORD_POOL_SIZE"`

	ReaperInterval time.Duration `env:"GOIDENTITY_REAPER_INTERVAL"`

	HighFrequencyCount  int `env:"GOIDENTITY_ANOMALY_HIGH_FREQUENCY_COUNT"`
	DistinctOriginCount int `env:"GOIDENTITY_ANOMALY_DISTINCT_ORIGIN_COUNT"`

	MetricsEnabled bool `env:"GOIDENTITY_METRICS_ENABLED"`
}

// LoadDotEnv loads .env files into the process environment so that
// [ConfigFromEnv] picks their values up. With no arguments it reads ./.env.
// A missing file is not an error; the same binary runs with or without one.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ConfigFromEnv layers environment overrides on top of [DefaultConfig].
// The signing secret is the one value with no in-code fallback: deployments
// inject it through GOIDENTITY_SIGNING_SECRET (or set [SigningConfig.Secret]
// directly from their own secret source before calling Build).
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if ov.SigningSecret != "" {
		cfg.Signing.Secret = []byte(ov.SigningSecret)
	}
	if ov.Issuer != "" {
		cfg.Signing.Issuer = ov.Issuer
	}
	if ov.Audience != "" {
		cfg.Signing.Audience = ov.Audience
	}
	if ov.MaxFailedAttempts > 0 {
		cfg.Lockout.MaxFailedAttempts = ov.MaxFailedAttempts
	}
	if ov.LockoutDuration > 0 {
		cfg.Lockout.LockoutDuration = ov.LockoutDuration
	}
	if ov.SessionLifetime > 0 {
		cfg.Session.Lifetime = ov.SessionLifetime
	}
	if ov.PasswordMinLength > 0 {
		cfg.Password.MinLength = ov.PasswordMinLength
	}
	if ov.PasswordPoolSize > 0 {
		cfg.Password.PoolSize = ov.PasswordPoolSize
	}
	if ov.ReaperInterval > 0 {
		cfg.Reaper.Interval = ov.ReaperInterval
	}
	if ov.HighFrequencyCount > 0 {
		cfg.Usage.HighFrequencyCount = ov.HighFrequencyCount
	}
	if ov.DistinctOriginCount > 0 {
		cfg.Usage.DistinctOriginCount = ov.DistinctOriginCount
	}
	if ov.MetricsEnabled {
		cfg.Metrics.Enabled = true
	}

	return cfg, nil
}

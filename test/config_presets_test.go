package test

import (
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

var presetSecret = []byte("preset-validation-signing-secret")

func TestDefaultConfigPresetValidates(t *testing.T) {
	cfg := goIdentity.DefaultConfig()

	// The baseline ships without a secret and must refuse to validate
	// until one is supplied.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to fail without a signing secret")
	}

	cfg.Signing.Secret = presetSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected preset to validate, got %v", err)
	}

	if cfg.Signing.Issuer != "goIdentity" || cfg.Signing.Audience != "goIdentity" {
		t.Fatalf("unexpected signing identity: %q/%q", cfg.Signing.Issuer, cfg.Signing.Audience)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics disabled in preset baseline")
	}
	if cfg.Lockout.MaxFailedAttempts != 5 {
		t.Fatalf("expected 5 failed attempts before lockout, got %d", cfg.Lockout.MaxFailedAttempts)
	}

	access, ok := cfg.Tokens.PolicyFor(goIdentity.KindAccess)
	if !ok {
		t.Fatal("expected an access token policy")
	}
	if access.DefaultLifetime != time.Hour || !access.AllowRefresh {
		t.Fatalf("unexpected access policy: %+v", access)
	}
}

func TestHighSecurityConfigPresetValidates(t *testing.T) {
	cfg := goIdentity.HighSecurityConfig()

	cfg.Signing.Secret = presetSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high security preset to validate, got %v", err)
	}

	if !cfg.Metrics.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatal("expected full metrics enabled")
	}
	if cfg.Lockout.MaxFailedAttempts != 3 {
		t.Fatalf("expected 3 failed attempts before lockout, got %d", cfg.Lockout.MaxFailedAttempts)
	}
	if cfg.Password.MinLength < 12 {
		t.Fatalf("expected password MinLength >= 12, got %d", cfg.Password.MinLength)
	}

	access, _ := cfg.Tokens.PolicyFor(goIdentity.KindAccess)
	base, _ := goIdentity.DefaultConfig().Tokens.PolicyFor(goIdentity.KindAccess)
	if access.DefaultLifetime >= base.DefaultLifetime {
		t.Fatalf("expected shorter access lifetime than baseline, got %v", access.DefaultLifetime)
	}

	apiKey, _ := cfg.Tokens.PolicyFor(goIdentity.KindAPIKey)
	if !apiKey.RequireOrigins {
		t.Fatal("expected api keys to require origin pinning")
	}
}

func TestHighThroughputConfigPresetValidates(t *testing.T) {
	cfg := goIdentity.HighThroughputConfig()

	cfg.Signing.Secret = presetSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high throughput preset to validate, got %v", err)
	}

	if !cfg.Metrics.Enabled {
		t.Fatal("expected counters enabled")
	}
	if cfg.Metrics.EnableLatencyHistograms {
		t.Fatal("expected latency histograms disabled for throughput preset")
	}
	if cfg.Password.PoolSize <= goIdentity.DefaultConfig().Password.PoolSize {
		t.Fatalf("expected a larger hashing pool, got %d", cfg.Password.PoolSize)
	}

	for kind := range cfg.Tokens.Policies {
		policy := cfg.Tokens.Policies[kind]
		if policy.DefaultLifetime <= 0 || policy.MaxLifetime <= 0 {
			t.Fatalf("expected positive lifetimes for %s", kind)
		}
	}
}

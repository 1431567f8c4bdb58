package goIdentity

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Signing  SigningConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Session  SessionConfig
	Tokens   TokenConfig
	Scopes   ScopeConfig
	MFA      MFAConfig
	Usage    UsageConfig
	Events   EventConfig
	Reaper   ReaperConfig
	Metrics  MetricsConfig
}

/*
====================================
SIGNING CONFIG
====================================
*/

// SigningConfig defines a public type used by goIdentity APIs.
//
// Secret has no default. It must come from an external secret source; a
// process-generated fallback would silently invalidate every outstanding
// bearer token on restart, so its absence fails [Config.Validate].
type SigningConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goIdentity APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Algorithm string // "argon2id" (default) or "bcrypt"

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	BcryptCost int

	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool

	// PoolSize bounds the worker pool all hashing and verification runs
	// on, so CPU-bound hashing cannot starve concurrent validations.
	PoolSize int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by goIdentity APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goIdentity APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	Lifetime time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goIdentity APIs.
//
// Policies must cover every [TokenKind]; creation of a kind without a
// policy is refused because no bounded lifetime could be derived for it.
type TokenConfig struct {
	Policies map[TokenKind]TokenPolicy
}

// PolicyFor returns the policy for the kind.
func (c TokenConfig) PolicyFor(kind TokenKind) (TokenPolicy, bool) {
	p, ok := c.Policies[kind]
	return p, ok
}

/*
====================================
SCOPE CONFIG
====================================
*/

// ScopeConfig defines a public type used by goIdentity APIs.
//
// RoleScopes selects the scope set stamped on session tokens minted at
// login for users of each role.
type ScopeConfig struct {
	RoleScopes map[Role]ScopeSet
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by goIdentity APIs.
//
// MFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAConfig struct {
	Issuer       string
	Digits       int
	Period       time.Duration
	Skew         int
	SecretLength int
	Algorithm    string
}

/*
====================================
USAGE CONFIG
====================================
*/

// UsageConfig defines a public type used by goIdentity APIs.
//
// UsageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UsageConfig struct {
	MaxRecords int

	HighFrequencyCount  int
	HighFrequencyWindow time.Duration

	DistinctOriginCount  int
	DistinctOriginWindow time.Duration
}

/*
====================================
EVENT CONFIG
====================================
*/

// EventConfig defines a public type used by goIdentity APIs.
//
// EventConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventConfig struct {
	BufferSize int
	DropIfFull bool
}

/*
====================================
REAPER CONFIG
====================================
*/

// ReaperConfig defines a public type used by goIdentity APIs.
//
// ReaperConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ReaperConfig struct {
	Interval     time.Duration
	SweepTimeout time.Duration
	BatchLimit   int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goIdentity APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. The signing secret is
// deliberately absent; [Config.Validate] fails until one is supplied.
func DefaultConfig() Config {
	return Config{
		Signing: SigningConfig{
			Issuer:       "goIdentity",
			Audience:     "goIdentity",
			Leeway:       30 * time.Second,
			MaxFutureIAT: 2 * time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     12,
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
			PoolSize:       4,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			LockoutDuration:   30 * time.Minute,
		},
		Session: SessionConfig{
			Lifetime: 24 * time.Hour,
		},
		Tokens: TokenConfig{
			Policies: map[TokenKind]TokenPolicy{
				KindAccess: {
					Kind:            KindAccess,
					DefaultLifetime: time.Hour,
					MaxLifetime:     24 * time.Hour,
					AllowRefresh:    true,
				},
				KindRefresh: {
					Kind:            KindRefresh,
					DefaultLifetime: 30 * 24 * time.Hour,
					MaxLifetime:     90 * 24 * time.Hour,
				},
				KindAPIKey: {
					Kind:            KindAPIKey,
					DefaultLifetime: 365 * 24 * time.Hour,
					MaxLifetime:     730 * 24 * time.Hour,
					RequireOrigins:  false,
				},
				KindSession: {
					Kind:            KindSession,
					DefaultLifetime: time.Hour,
					MaxLifetime:     24 * time.Hour,
					AllowRefresh:    true,
				},
				KindTemporary: {
					Kind:            KindTemporary,
					DefaultLifetime: 5 * time.Minute,
					MaxLifetime:     time.Hour,
				},
				KindService: {
					Kind:            KindService,
					DefaultLifetime: 7 * 24 * time.Hour,
					MaxLifetime:     30 * 24 * time.Hour,
					RequiredScopes:  NewScopeSet(ScopeService),
				},
				KindDelegation: {
					Kind:            KindDelegation,
					DefaultLifetime: time.Hour,
					MaxLifetime:     24 * time.Hour,
				},
			},
		},
		Scopes: ScopeConfig{
			RoleScopes: map[Role]ScopeSet{
				RoleAdmin:     NewScopeSet(ScopeAdmin, ScopeFull),
				RoleDeveloper: NewScopeSet(ScopeRead, ScopeWrite),
				RoleOperator:  NewScopeSet(ScopeRead, ScopeWrite),
				RoleViewer:    NewScopeSet(ScopeRead),
				RoleService:   NewScopeSet(ScopeService),
				RoleGuest:     NewScopeSet(ScopeLimited),
			},
		},
		MFA: MFAConfig{
			Issuer:       "goIdentity",
			Digits:       6,
			Period:       30 * time.Second,
			Skew:         1,
			SecretLength: 20,
			Algorithm:    "SHA1",
		},
		Usage: UsageConfig{
			MaxRecords:           100000,
			HighFrequencyCount:   100,
			HighFrequencyWindow:  5 * time.Minute,
			DistinctOriginCount:  10,
			DistinctOriginWindow: time.Hour,
		},
		Events: EventConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Reaper: ReaperConfig{
			Interval:     5 * time.Minute,
			SweepTimeout: 2 * time.Second,
			BatchLimit:   512,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
PRESETS
====================================
*/

// HighSecurityConfig returns a preset tuned for hostile environments:
// short token lifetimes, strict password and lockout policy, tight
// anomaly thresholds and full metrics. The signing secret must still be
// supplied by the caller.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()

	cfg.Signing.Leeway = 10 * time.Second
	cfg.Signing.MaxFutureIAT = time.Minute

	cfg.Password.Memory = 131072
	cfg.Password.Time = 4
	cfg.Password.MinLength = 12

	cfg.Lockout.MaxFailedAttempts = 3
	cfg.Lockout.LockoutDuration = time.Hour

	cfg.Session.Lifetime = 8 * time.Hour

	access := cfg.Tokens.Policies[KindAccess]
	access.DefaultLifetime = 15 * time.Minute
	access.MaxLifetime = time.Hour
	cfg.Tokens.Policies[KindAccess] = access

	refresh := cfg.Tokens.Policies[KindRefresh]
	refresh.DefaultLifetime = 7 * 24 * time.Hour
	refresh.MaxLifetime = 30 * 24 * time.Hour
	cfg.Tokens.Policies[KindRefresh] = refresh

	session := cfg.Tokens.Policies[KindSession]
	session.DefaultLifetime = 15 * time.Minute
	session.MaxLifetime = 8 * time.Hour
	cfg.Tokens.Policies[KindSession] = session

	apiKey := cfg.Tokens.Policies[KindAPIKey]
	apiKey.DefaultLifetime = 90 * 24 * time.Hour
	apiKey.MaxLifetime = 365 * 24 * time.Hour
	apiKey.RequireOrigins = true
	cfg.Tokens.Policies[KindAPIKey] = apiKey

	temporary := cfg.Tokens.Policies[KindTemporary]
	temporary.DefaultLifetime = 2 * time.Minute
	temporary.MaxLifetime = 10 * time.Minute
	cfg.Tokens.Policies[KindTemporary] = temporary

	cfg.Usage.HighFrequencyCount = 50
	cfg.Usage.DistinctOriginCount = 5

	cfg.Reaper.Interval = time.Minute

	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return cfg
}

// HighThroughputConfig returns a preset tuned for validation-heavy
// deployments: longer access lifetimes to reduce refresh pressure, a
// larger hashing pool, bigger event buffers and counters without
// latency histograms.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()

	cfg.Password.Memory = 32768
	cfg.Password.Time = 2
	cfg.Password.Parallelism = 4
	cfg.Password.PoolSize = 16

	access := cfg.Tokens.Policies[KindAccess]
	access.DefaultLifetime = 4 * time.Hour
	cfg.Tokens.Policies[KindAccess] = access

	session := cfg.Tokens.Policies[KindSession]
	session.DefaultLifetime = 4 * time.Hour
	cfg.Tokens.Policies[KindSession] = session

	cfg.Usage.HighFrequencyCount = 1000
	cfg.Usage.DistinctOriginCount = 50

	cfg.Events.BufferSize = 8192

	cfg.Reaper.Interval = 15 * time.Minute
	cfg.Reaper.BatchLimit = 2048

	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = false

	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Signing.Secret = cloneBytes(cfg.Signing.Secret)
	if cfg.Tokens.Policies != nil {
		out.Tokens.Policies = make(map[TokenKind]TokenPolicy, len(cfg.Tokens.Policies))
		for k, v := range cfg.Tokens.Policies {
			out.Tokens.Policies[k] = v
		}
	}
	if cfg.Scopes.RoleScopes != nil {
		out.Scopes.RoleScopes = make(map[Role]ScopeSet, len(cfg.Scopes.RoleScopes))
		for k, v := range cfg.Scopes.RoleScopes {
			out.Scopes.RoleScopes[k] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// MinSigningSecretLength is an exported constant or variable used by the identity engine.
const MinSigningSecretLength = 32

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Signing
	if len(c.Signing.Secret) == 0 {
		return errors.New("signing secret is required; the engine never generates one")
	}
	if len(c.Signing.Secret) < MinSigningSecretLength {
		return errors.New("signing secret must be at least 32 bytes")
	}
	if c.Signing.Issuer == "" {
		return errors.New("signing issuer must not be empty")
	}
	if c.Signing.Audience == "" {
		return errors.New("signing audience must not be empty")
	}
	if c.Signing.Leeway < 0 {
		return errors.New("signing leeway must be >= 0")
	}
	if c.Signing.MaxFutureIAT <= 0 {
		return errors.New("signing MaxFutureIAT must be > 0")
	}

	// Password
	switch c.Password.Algorithm {
	case "argon2id", "bcrypt":
	default:
		return errors.New("unsupported password algorithm")
	}
	if c.Password.Memory < 8192 {
		return errors.New("password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 8 {
		return errors.New("password SaltLength must be >= 8")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("password BcryptCost must be within [4, 31]")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password MinLength must be >= 1")
	}
	if c.Password.PoolSize < 1 {
		return errors.New("password PoolSize must be >= 1")
	}

	// Lockout
	if c.Lockout.MaxFailedAttempts < 1 {
		return errors.New("lockout MaxFailedAttempts must be >= 1")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return errors.New("lockout LockoutDuration must be > 0")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("session Lifetime must be > 0")
	}

	// Tokens
	if len(c.Tokens.Policies) == 0 {
		return errors.New("token policies must not be empty")
	}
	for kind := TokenKind(0); kind < tokenKindCount; kind++ {
		p, ok := c.Tokens.Policies[kind]
		if !ok {
			return errors.New("token policy missing for kind " + kind.String())
		}
		if p.DefaultLifetime <= 0 {
			return errors.New("token policy DefaultLifetime must be > 0 for kind " + kind.String())
		}
		if p.MaxLifetime < p.DefaultLifetime {
			return errors.New("token policy MaxLifetime must be >= DefaultLifetime for kind " + kind.String())
		}
		if p.MaxUses < 0 {
			return errors.New("token policy MaxUses must be >= 0 for kind " + kind.String())
		}
	}

	// MFA
	if c.MFA.Digits < 6 || c.MFA.Digits > 8 {
		return errors.New("mfa Digits must be within [6, 8]")
	}
	if c.MFA.Period <= 0 {
		return errors.New("mfa Period must be > 0")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("mfa Skew must be within [0, 2]")
	}
	if c.MFA.SecretLength < 10 {
		return errors.New("mfa SecretLength must be >= 10")
	}
	switch strings.ToUpper(c.MFA.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("mfa Algorithm must be SHA1, SHA256 or SHA512")
	}

	// Usage
	if c.Usage.MaxRecords < 1 {
		return errors.New("usage MaxRecords must be >= 1")
	}
	if c.Usage.HighFrequencyCount < 1 {
		return errors.New("usage HighFrequencyCount must be >= 1")
	}
	if c.Usage.HighFrequencyWindow <= 0 {
		return errors.New("usage HighFrequencyWindow must be > 0")
	}
	if c.Usage.DistinctOriginCount < 1 {
		return errors.New("usage DistinctOriginCount must be >= 1")
	}
	if c.Usage.DistinctOriginWindow <= 0 {
		return errors.New("usage DistinctOriginWindow must be > 0")
	}

	// Events
	if c.Events.BufferSize < 1 {
		return errors.New("events BufferSize must be >= 1")
	}

	// Reaper
	if c.Reaper.Interval <= 0 {
		return errors.New("reaper Interval must be > 0")
	}
	if c.Reaper.SweepTimeout <= 0 {
		return errors.New("reaper SweepTimeout must be > 0")
	}
	if c.Reaper.SweepTimeout >= c.Reaper.Interval {
		return errors.New("reaper SweepTimeout must be < Interval")
	}
	if c.Reaper.BatchLimit < 1 {
		return errors.New("reaper BatchLimit must be >= 1")
	}

	return nil
}

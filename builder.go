package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
)

// Builder defines a public type used by goIdentity APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Repositories left nil default to the in-memory stores, which is the
// single-process deployment of the engine; pass redistore implementations
// to share state across processes.
type Builder struct {
	config Config

	users     UserRepository
	sessions  SessionRepository
	tokens    TokenRepository
	blacklist BlacklistRepository

	clock func() time.Time
	sinks []busSubscription

	built bool
}

type busSubscription struct {
	sink  EventSink
	types []EventType
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSigningSecret describes the withsigningsecret operation and its observable behavior.
//
// WithSigningSecret may return an error when input validation, dependency calls, or security checks fail.
// WithSigningSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSigningSecret(secret []byte) *Builder {
	b.config.Signing.Secret = cloneBytes(secret)
	return b
}

// WithUserRepository describes the withuserrepository operation and its observable behavior.
//
// WithUserRepository may return an error when input validation, dependency calls, or security checks fail.
// WithUserRepository does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserRepository(r UserRepository) *Builder {
	b.users = r
	return b
}

// WithSessionRepository describes the withsessionrepository operation and its observable behavior.
//
// WithSessionRepository may return an error when input validation, dependency calls, or security checks fail.
// WithSessionRepository does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionRepository(r SessionRepository) *Builder {
	b.sessions = r
	return b
}

// WithTokenRepository describes the withtokenrepository operation and its observable behavior.
//
// WithTokenRepository may return an error when input validation, dependency calls, or security checks fail.
// WithTokenRepository does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenRepository(r TokenRepository) *Builder {
	b.tokens = r
	return b
}

// WithBlacklistRepository describes the withblacklistrepository operation and its observable behavior.
//
// WithBlacklistRepository may return an error when input validation, dependency calls, or security checks fail.
// WithBlacklistRepository does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBlacklistRepository(r BlacklistRepository) *Builder {
	b.blacklist = r
	return b
}

// WithClock describes the withclock operation and its observable behavior.
//
// WithClock may return an error when input validation, dependency calls, or security checks fail.
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink may return an error when input validation, dependency calls, or security checks fail.
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink, types ...EventType) *Builder {
	if sink != nil {
		b.sinks = append(b.sinks, busSubscription{sink: sink, types: types})
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		sessions:  b.sessions,
		tokens:    b.tokens,
		blacklist: b.blacklist,
		now:       clock,
	}
	if engine.users == nil {
		engine.users = NewMemoryUserStore()
	}
	if engine.sessions == nil {
		engine.sessions = NewMemorySessionStore()
	}
	if engine.tokens == nil {
		engine.tokens = NewMemoryTokenStore()
	}
	if engine.blacklist == nil {
		engine.blacklist = NewMemoryBlacklistStore()
	}

	jm, err := jwt.NewManager(jwt.Config{
		Secret:       cloneBytes(cfg.Signing.Secret),
		Issuer:       cfg.Signing.Issuer,
		Audience:     cfg.Signing.Audience,
		Leeway:       cfg.Signing.Leeway,
		MaxFutureIAT: cfg.Signing.MaxFutureIAT,
		TimeFunc:     clock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	engine.jwt = jm

	argon2, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	bcryptHasher, err := password.NewBcrypt(cfg.Password.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	engine.argon2 = argon2
	engine.bcrypt = bcryptHasher

	var primary password.Hasher = argon2
	if cfg.Password.Algorithm == password.AlgorithmBcrypt {
		primary = bcryptHasher
	}
	pool, err := password.NewPool(primary, cfg.Password.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	engine.pool = pool

	engine.policy = password.Policy{
		MinLength:      cfg.Password.MinLength,
		RequireUpper:   cfg.Password.RequireUpper,
		RequireLower:   cfg.Password.RequireLower,
		RequireDigit:   cfg.Password.RequireDigit,
		RequireSpecial: cfg.Password.RequireSpecial,
		SpecialChars:   password.DefaultSpecialChars,
	}

	engine.totp = newTOTPManager(cfg.MFA)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.usage = NewUsageTracker(cfg.Usage)

	engine.bus = NewBus(cfg.Events)
	for _, sub := range b.sinks {
		engine.bus.Subscribe(sub.sink, sub.types...)
	}

	engine.reaper = newReaper(engine, cfg.Reaper)
	engine.reaper.start()

	b.built = true

	return engine, nil
}

package goIdentity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
)

// Engine defines a public type used by goIdentity APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// An Engine is safe for concurrent use. All mutating state lives in the
// repositories and in the internal bus, metrics and usage components, each
// of which carries its own synchronization.
//
//	Docs: docs/engine.md
type Engine struct {
	config Config

	users     UserRepository
	sessions  SessionRepository
	tokens    TokenRepository
	blacklist BlacklistRepository

	jwt    *jwt.Manager
	pool   *password.Pool
	argon2 *password.Argon2
	bcrypt *password.Bcrypt
	policy password.Policy
	totp   *totpManager

	bus     *Bus
	metrics *Metrics
	usage   *UsageTracker
	reaper  *reaper

	now    func() time.Time
	closed atomic.Bool
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Close stops the reaper and the event bus. It is idempotent; operations
// invoked after Close return [ErrEngineClosed].
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.closed.Swap(true) {
		return nil
	}
	if e.reaper != nil {
		e.reaper.stop()
	}
	if e.bus != nil {
		e.bus.Close()
	}
	return nil
}

// Config describes the config operation and its observable behavior.
//
// Config may return an error when input validation, dependency calls, or security checks fail.
// Config does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Subscribe describes the subscribe operation and its observable behavior.
//
// Subscribe may return an error when input validation, dependency calls, or security checks fail.
// Subscribe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Subscribe(sink EventSink, types ...EventType) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Subscribe(sink, types...)
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped may return an error when input validation, dependency calls, or security checks fail.
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EventsDropped() uint64 {
	if e == nil || e.bus == nil {
		return 0
	}
	return e.bus.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) guard() error {
	if e == nil || e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, delta uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, delta)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// verifyPassword routes verification through the hasher that produced the
// stored hash, so bcrypt hashes written before an argon2id migration keep
// verifying. Work still runs on the shared pool.
func (e *Engine) verifyPassword(ctx context.Context, plain, encodedHash string) (bool, error) {
	algo, err := password.Detect(encodedHash)
	if err != nil {
		return false, err
	}
	if algo == e.pool.Hasher().Algorithm() {
		return e.pool.Verify(ctx, plain, encodedHash)
	}
	var legacy password.Hasher
	switch algo {
	case password.AlgorithmArgon2id:
		legacy = e.argon2
	case password.AlgorithmBcrypt:
		legacy = e.bcrypt
	default:
		return false, password.ErrUnknownHash
	}
	return e.pool.VerifyWith(ctx, legacy, plain, encodedHash)
}

// needsRehash reports whether the stored hash should be upgraded to the
// configured primary algorithm and parameters.
func (e *Engine) needsRehash(encodedHash string) bool {
	algo, err := password.Detect(encodedHash)
	if err != nil {
		return false
	}
	primary := e.pool.Hasher()
	if algo != primary.Algorithm() {
		return true
	}
	needs, err := primary.NeedsRehash(encodedHash)
	if err != nil {
		return false
	}
	return needs
}

func (e *Engine) tokenPolicy(kind TokenKind) (TokenPolicy, bool) {
	return e.config.Tokens.PolicyFor(kind)
}

func (e *Engine) scopesForRole(role Role) ScopeSet {
	return e.config.Scopes.RoleScopes[role]
}

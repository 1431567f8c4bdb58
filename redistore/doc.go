// Package redistore provides Redis-backed implementations of the four
// goIdentity repository contracts: users, sessions, tokens, and the
// revocation blacklist. All stores share one [redis.UniversalClient] and a
// key namespace, so a single Redis deployment can back several engines.
//
// Atomicity is enforced server-side: the linearization points the engine
// depends on (token status transitions, use-count consumption, lockout
// accounting, uniqueness claims) run as Lua scripts, never as read-modify-
// write round trips. Record bodies are stored as versioned binary blobs next
// to the small mutable fields the scripts touch.
//
// Terminal records are retained past their expiry for the configured
// retention window so audit reads and the background sweeper can still
// observe them; a PEXPIREAT backstop reclaims whatever the sweeper misses.
//
//	stores := redistore.Open(redistore.Options{Client: client})
//	engine, err := goIdentity.NewBuilder().
//		WithSigningSecret(secret).
//		WithUserRepository(stores.Users).
//		WithSessionRepository(stores.Sessions).
//		WithTokenRepository(stores.Tokens).
//		WithBlacklistRepository(stores.Blacklist).
//		Build()
//
//	Docs: docs/stores.md
package redistore

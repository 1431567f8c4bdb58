// Package goIdentity provides an embeddable identity and token-lifecycle engine with
// signed session bearers, rotating opaque refresh tokens, TOTP second factors, and
// per-kind token policies.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config], the
// repository contracts, and value types (Token, Session, AuthResult, Statistics).
// Hashing, signing, and id generation live in sub-packages (password/, jwt/,
// internal/) that never import goIdentity back (no import cycles). Persistence is
// pluggable through the repository interfaces; the in-memory stores in this package
// are the single-process default and redistore/ is the shared-state deployment.
//
// # What this package must NOT do
//
//   - Generate a signing secret. The secret always arrives from configuration and
//     [Builder.Build] fails without one; a process-generated fallback would silently
//     invalidate every outstanding bearer on restart.
//   - Resolve a token value through the live index after the token leaves Active.
//   - Block a caller on event delivery. Slow sinks cost buffered slots, not request
//     latency.
//
// # Performance contract
//
// ValidateToken is the hot path: index lookups plus one atomic use-count consume,
// never a password hash. Hashing is confined to the bounded worker pool in
// password/ so login bursts cannot starve concurrent validations.
package goIdentity

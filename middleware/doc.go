// Package middleware exposes HTTP middleware adapters for bearer-token
// authorization built on top of goIdentity.Engine validation.
//
// # Guards
//
//   - [Guard] — full control over the per-request [goIdentity.ValidateRequest].
//   - [Require] — bearer authentication only.
//   - [RequireScopes] — bearer authentication plus a scope requirement.
//
// Each guard reads the Authorization header, calls Engine.ValidateToken, and
// injects the validated token into the request context. Every request goes
// through the full validation chain, including revocation checks; there is
// no stateless fast path.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateToken.
//
// # What this package must NOT do
//
//   - Parse or create bearer tokens directly (delegates to Engine).
//   - Access repositories (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.ValidateToken.
package middleware

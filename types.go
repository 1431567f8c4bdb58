package goIdentity

import (
	"fmt"
	"time"
)

// TokenKind discriminates the credential families the engine can mint.
// Access and Session tokens carry signed self-describing values; every
// other kind is an opaque random value resolvable only through the token
// store.
//
//	Docs: docs/tokens.md
type TokenKind uint8

const (
	// KindAccess is an exported constant or variable used by the identity engine.
	KindAccess TokenKind = iota
	// KindRefresh is an exported constant or variable used by the identity engine.
	KindRefresh
	// KindAPIKey is an exported constant or variable used by the identity engine.
	KindAPIKey
	// KindSession is an exported constant or variable used by the identity engine.
	KindSession
	// KindTemporary is an exported constant or variable used by the identity engine.
	KindTemporary
	// KindService is an exported constant or variable used by the identity engine.
	KindService
	// KindDelegation is an exported constant or variable used by the identity engine.
	KindDelegation

	tokenKindCount
)

var tokenKindNames = [tokenKindCount]string{
	"access_token",
	"refresh_token",
	"api_key",
	"session_token",
	"temporary_token",
	"service_token",
	"delegation_token",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k TokenKind) String() string {
	if k >= tokenKindCount {
		return fmt.Sprintf("token_kind(%d)", uint8(k))
	}
	return tokenKindNames[k]
}

// ParseTokenKind describes the parsetokenkind operation and its observable behavior.
//
// ParseTokenKind may return an error when input validation, dependency calls, or security checks fail.
// ParseTokenKind does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseTokenKind(s string) (TokenKind, error) {
	for i, name := range tokenKindNames {
		if name == s {
			return TokenKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown token kind %q", ErrInvalidInput, s)
}

// TokenStatus represents the lifecycle state of a token. Active is the only
// state in which a value resolves through the live index; the remaining
// states are terminal.
//
//	Docs: docs/tokens.md
type TokenStatus uint8

const (
	// StatusActive is an exported constant or variable used by the identity engine.
	StatusActive TokenStatus = iota
	// StatusExpired is an exported constant or variable used by the identity engine.
	StatusExpired
	// StatusRevoked is an exported constant or variable used by the identity engine.
	StatusRevoked
	// StatusSuspended is an exported constant or variable used by the identity engine.
	StatusSuspended

	tokenStatusCount
)

var tokenStatusNames = [tokenStatusCount]string{
	"active",
	"expired",
	"revoked",
	"suspended",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s TokenStatus) String() string {
	if s >= tokenStatusCount {
		return fmt.Sprintf("token_status(%d)", uint8(s))
	}
	return tokenStatusNames[s]
}

// ParseTokenStatus describes the parsetokenstatus operation and its observable behavior.
//
// ParseTokenStatus may return an error when input validation, dependency calls, or security checks fail.
// ParseTokenStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseTokenStatus(s string) (TokenStatus, error) {
	for i, name := range tokenStatusNames {
		if name == s {
			return TokenStatus(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown token status %q", ErrInvalidInput, s)
}

// Role classifies user accounts. Roles do not grant anything by themselves;
// they select the default scope set of tokens minted at login through
// [ScopeConfig.RoleScopes].
type Role uint8

const (
	// RoleAdmin is an exported constant or variable used by the identity engine.
	RoleAdmin Role = iota
	// RoleDeveloper is an exported constant or variable used by the identity engine.
	RoleDeveloper
	// RoleOperator is an exported constant or variable used by the identity engine.
	RoleOperator
	// RoleViewer is an exported constant or variable used by the identity engine.
	RoleViewer
	// RoleService is an exported constant or variable used by the identity engine.
	RoleService
	// RoleGuest is an exported constant or variable used by the identity engine.
	RoleGuest

	roleCount
)

var roleNames = [roleCount]string{
	"admin",
	"developer",
	"operator",
	"viewer",
	"service",
	"guest",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Role) String() string {
	if r >= roleCount {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

// ParseRole describes the parserole operation and its observable behavior.
//
// ParseRole may return an error when input validation, dependency calls, or security checks fail.
// ParseRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// AuthMethod identifies how a caller proved its identity.
type AuthMethod uint8

const (
	// MethodPassword is an exported constant or variable used by the identity engine.
	MethodPassword AuthMethod = iota
	// MethodAPIKey is an exported constant or variable used by the identity engine.
	MethodAPIKey
	// MethodMFA is an exported constant or variable used by the identity engine.
	MethodMFA

	authMethodCount
)

var authMethodNames = [authMethodCount]string{
	"password",
	"api_key",
	"mfa",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m AuthMethod) String() string {
	if m >= authMethodCount {
		return fmt.Sprintf("auth_method(%d)", uint8(m))
	}
	return authMethodNames[m]
}

// AuthStatus is the typed outcome of an authentication attempt or a session
// validation. Callers branch on it instead of parsing failure messages.
//
//	Docs: docs/engine.md
type AuthStatus uint8

const (
	// AuthSuccess is an exported constant or variable used by the identity engine.
	AuthSuccess AuthStatus = iota
	// AuthFailed is an exported constant or variable used by the identity engine.
	AuthFailed
	// AuthExpired is an exported constant or variable used by the identity engine.
	AuthExpired
	// AuthLocked is an exported constant or variable used by the identity engine.
	AuthLocked
	// AuthPending is an exported constant or variable used by the identity engine.
	AuthPending
	// AuthRevoked is an exported constant or variable used by the identity engine.
	AuthRevoked

	authStatusCount
)

var authStatusNames = [authStatusCount]string{
	"success",
	"failed",
	"expired",
	"locked",
	"pending",
	"revoked",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AuthStatus) String() string {
	if s >= authStatusCount {
		return fmt.Sprintf("auth_status(%d)", uint8(s))
	}
	return authStatusNames[s]
}

// User is the identity record owned by the credential side of the engine.
// FailedAttempts and LockedUntil are mutated only by the authentication
// path and always reset together on a successful password check.
type User struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	PasswordHash string

	Active   bool
	Verified bool

	FailedAttempts int
	LockedUntil    time.Time

	MFAEnabled bool
	MFASecret  string

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Locked reports whether the account is inside a lockout window. Lockouts
// expire by time alone; there is no explicit unlock operation.
func (u *User) Locked(now time.Time) bool {
	return !u.LockedUntil.IsZero() && now.Before(u.LockedUntil)
}

// Session is a live authenticated context created on successful login.
// It is expired lazily on first access past ExpiresAt and reclaimed by the
// background sweeper.
type Session struct {
	ID     string
	UserID string
	Method AuthMethod

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time

	ClientIP  string
	UserAgent string

	Active bool
}

// Token is a bearer credential of one of the [TokenKind] families.
// Value maps to at most one live token at any time; once the token leaves
// [StatusActive] the value is removed from the live index even though the
// record itself is retained for audit.
//
//	Docs: docs/tokens.md
type Token struct {
	ID       string
	Kind     TokenKind
	Value    string
	UserID   string
	ClientID string

	Scopes ScopeSet
	Status TokenStatus

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	UseCount int64
	MaxUses  int64

	Origins  []string
	Metadata map[string]string
}

// Clone returns a deep copy so callers can hold token snapshots without
// aliasing store-owned state.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Origins != nil {
		cp.Origins = append([]string(nil), t.Origins...)
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// TokenPolicy is the per-kind issuance policy. It is consulted only at
// creation time to fill unset fields; already-issued tokens are never
// re-validated against a changed policy.
//
//	Docs: docs/tokens.md
type TokenPolicy struct {
	Kind            TokenKind
	DefaultLifetime time.Duration
	MaxLifetime     time.Duration
	MaxUses         int64
	RequireOrigins  bool
	RequiredScopes  ScopeSet
	AllowRefresh    bool
}

// BlacklistEntry records a revoked token without retaining the raw secret.
// ExpiresAt is the token's original expiry; past that instant the entry can
// be reclaimed because the token could not have validated anyway.
type BlacklistEntry struct {
	TokenID   string
	ValueHash string
	RevokedAt time.Time
	Actor     string
	Reason    string
	ExpiresAt time.Time
}

// UsageRecord is one observed validation attempt against a resolved token.
// Records are append-only and capped by the tracker's retention settings.
type UsageRecord struct {
	TokenID  string
	UserID   string
	At       time.Time
	Origin   string
	Resource string
	Success  bool
}

// AnomalyKind classifies the usage patterns the tracker flags.
type AnomalyKind uint8

const (
	// AnomalyHighFrequency is an exported constant or variable used by the identity engine.
	AnomalyHighFrequency AnomalyKind = iota
	// AnomalyMultipleOrigins is an exported constant or variable used by the identity engine.
	AnomalyMultipleOrigins

	anomalyKindCount
)

var anomalyKindNames = [anomalyKindCount]string{
	"high_frequency_usage",
	"multiple_ip_usage",
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (k AnomalyKind) String() string {
	if k >= anomalyKindCount {
		return fmt.Sprintf("anomaly(%d)", uint8(k))
	}
	return anomalyKindNames[k]
}

// AnomalySignal is emitted when a token's recent usage crosses one of the
// configured thresholds. The engine publishes it and moves on; revocation
// stays an explicit caller decision.
type AnomalySignal struct {
	TokenID    string
	UserID     string
	Kind       AnomalyKind
	Count      int
	Window     time.Duration
	ObservedAt time.Time
}

// Credentials carries the proof material for [Engine.Authenticate].
// Unused fields stay empty; the selected [AuthMethod] decides which ones
// are read.
type Credentials struct {
	Username string
	Password string
	MFACode  string
	APIKey   string
}

// AuthResult is returned by [Engine.Authenticate]. Token carries the bearer
// value of the freshly minted session token on success; RefreshToken the
// paired rotation credential. A Pending status with MFARequired set means
// the caller must resubmit the same credentials plus a one-time code.
//
//	Docs: docs/engine.md
type AuthResult struct {
	Status    AuthStatus
	UserID    string
	SessionID string

	Token        string
	RefreshToken string
	ExpiresAt    time.Time

	MFARequired bool
}

// TokenPair is returned by [Engine.RefreshToken]: a new access token and
// the replacement refresh token. The presented refresh token is already
// revoked by the time a pair is returned.
type TokenPair struct {
	Access  *Token
	Refresh *Token
}

// TokenRequest is the input for [Engine.CreateToken]. Zero values defer to
// the kind's [TokenPolicy]: ExpiresIn 0 selects the policy default lifetime,
// MaxUses 0 means unlimited, an empty Origins list means unrestricted
// (unless the policy mandates origin pinning).
type TokenRequest struct {
	Kind      TokenKind
	UserID    string
	ClientID  string
	Scopes    ScopeSet
	ExpiresIn time.Duration
	MaxUses   int64
	Origins   []string
	Metadata  map[string]string
}

// ValidateRequest carries the per-call requirements for
// [Engine.ValidateToken]. Origin falls back to the client IP recorded in
// the request context when empty.
type ValidateRequest struct {
	Scopes   ScopeSet
	Origin   string
	Resource string
}

// Statistics is a point-in-time inventory of the token estate, returned by
// [Engine.Stats].
//
//	Docs: docs/engine.md
type Statistics struct {
	TotalTokens    int
	ActiveTokens   int
	ByKind         map[string]int
	ByStatus       map[string]int
	ExpiredTokens  int
	ExpiringSoon   int
	BlacklistSize  int
	UsageVolume    int
	ActiveSessions int
}

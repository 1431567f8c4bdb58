package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/jwt"
)

// CreateToken describes the createtoken operation and its observable behavior.
//
// CreateToken may return an error when input validation, dependency calls, or security checks fail.
// CreateToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Zero-valued request fields defer to the kind's [TokenPolicy]: ExpiresIn 0
// selects the policy default lifetime (never unbounded), MaxUses 0 adopts
// the policy ceiling, an empty Origins list stays unrestricted unless the
// policy mandates pinning. A negative ExpiresIn or MaxUses is refused.
//
//	Docs: docs/tokens.md
func (e *Engine) CreateToken(ctx context.Context, req TokenRequest) (*Token, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if req.Kind >= tokenKindCount {
		return nil, fmt.Errorf("%w: unknown token kind", ErrInvalidInput)
	}
	if req.ExpiresIn < 0 {
		return nil, fmt.Errorf("%w: ExpiresIn must be >= 0", ErrInvalidInput)
	}
	if req.MaxUses < 0 {
		return nil, fmt.Errorf("%w: MaxUses must be >= 0", ErrInvalidInput)
	}

	u, err := e.users.ByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	t, err := e.issueToken(ctx, req)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, Event{
		Type:     EventTokenCreated,
		UserID:   t.UserID,
		TokenID:  t.ID,
		ClientID: t.ClientID,
		Success:  true,
		Metadata: map[string]string{
			"kind": t.Kind.String(),
		},
	})

	return t, nil
}

// issueToken mints and stores a token without publishing an operation event;
// callers own the event so login, refresh, and explicit creation each emit
// exactly one.
func (e *Engine) issueToken(ctx context.Context, req TokenRequest) (*Token, error) {
	policy, ok := e.tokenPolicy(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: no policy for token kind %s", ErrConfiguration, req.Kind)
	}

	lifetime := req.ExpiresIn
	if lifetime == 0 {
		lifetime = policy.DefaultLifetime
	}
	if lifetime > policy.MaxLifetime {
		lifetime = policy.MaxLifetime
	}

	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = policy.MaxUses
	}

	if policy.RequireOrigins && len(req.Origins) == 0 {
		return nil, fmt.Errorf("%w: kind %s requires an origin allow-list", ErrInvalidInput, req.Kind)
	}

	now := e.now()
	t := &Token{
		ID:        internal.NewTokenID(),
		Kind:      req.Kind,
		UserID:    req.UserID,
		ClientID:  req.ClientID,
		Scopes:    req.Scopes.Union(policy.RequiredScopes),
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
		MaxUses:   maxUses,
		Origins:   append([]string(nil), req.Origins...),
		Metadata:  cloneStringMap(req.Metadata),
	}

	switch t.Kind {
	case KindAccess, KindSession:
		var sid string
		if t.Metadata != nil {
			sid = t.Metadata[metaSessionID]
		}
		value, err := e.jwt.Create(jwt.SignRequest{
			TokenID:   t.ID,
			UserID:    t.UserID,
			ClientID:  t.ClientID,
			SessionID: sid,
			Kind:      t.Kind.String(),
			Scopes:    t.Scopes.String(),
			IssuedAt:  now,
			ExpiresAt: t.ExpiresAt,
		})
		if err != nil {
			return nil, err
		}
		t.Value = value
	case KindAPIKey:
		value, err := internal.NewAPIKeyValue()
		if err != nil {
			return nil, err
		}
		t.Value = value
	default:
		value, err := internal.NewOpaqueValue()
		if err != nil {
			return nil, err
		}
		t.Value = value
	}

	if err := e.tokens.Insert(ctx, t); err != nil {
		return nil, err
	}

	e.metricInc(MetricTokenCreated)

	return t, nil
}

// ValidateToken describes the validatetoken operation and its observable behavior.
//
// ValidateToken may return an error when input validation, dependency calls, or security checks fail.
// ValidateToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Checks run in a fixed order: existence, status, blacklist, expiry, use
// ceiling, origin allow-list, scope subset. The first failure wins, so a
// token that is both expired and over its ceiling always reports
// [ErrTokenExpired]. A success consumes one use atomically; the returned
// snapshot carries the post-consume counter.
//
//	Docs: docs/tokens.md
func (e *Engine) ValidateToken(ctx context.Context, value string, req ValidateRequest) (*Token, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metricObserve(MetricValidateLatency, time.Since(start))
		}()
	}

	if value == "" {
		e.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: empty token value", ErrInvalidInput)
	}

	now := e.now()
	origin := req.Origin
	if origin == "" {
		origin = clientIPFromContext(ctx)
	}

	t, err := e.tokens.ByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			// A revoked value leaves the live index but keeps its hash on
			// the blacklist, so presenting it reports revocation, not a miss.
			hit, herr := e.blacklist.ContainsHash(ctx, internal.HashValue(value))
			if herr == nil && hit {
				err = ErrTokenRevoked
			}
		}
		e.metricInc(MetricValidateFailure)
		return nil, err
	}

	fail := func(cause error) (*Token, error) {
		e.observeUsage(ctx, t, origin, req.Resource, now, false)
		e.metricInc(MetricValidateFailure)
		return nil, cause
	}

	if t.Status != StatusActive {
		return fail(statusError(t.Status))
	}

	hit, err := e.blacklist.Contains(ctx, t.ID)
	if err != nil {
		return fail(err)
	}
	if hit {
		return fail(ErrTokenRevoked)
	}

	if !t.ExpiresAt.After(now) {
		e.expireToken(ctx, t, now)
		return fail(ErrTokenExpired)
	}

	if t.MaxUses > 0 && t.UseCount >= t.MaxUses {
		return fail(ErrTokenUseExceeded)
	}

	if !originAllowed(t.Origins, origin) {
		return fail(ErrOriginDenied)
	}

	if !t.Scopes.Superset(req.Scopes) {
		return fail(ErrScopeInsufficient)
	}

	count, err := e.tokens.ConsumeUse(ctx, t.ID, t.MaxUses, now)
	if err != nil {
		if errors.Is(err, ErrTokenNotActive) {
			// Lost the race to a concurrent revoke, suspend, or expiry.
			if cur, berr := e.tokens.ByID(ctx, t.ID); berr == nil {
				return fail(statusError(cur.Status))
			}
			return fail(ErrTokenNotFound)
		}
		return fail(err)
	}
	t.UseCount = count
	t.LastUsedAt = now

	e.observeUsage(ctx, t, origin, req.Resource, now, true)
	e.metricInc(MetricValidateSuccess)
	e.publish(ctx, Event{
		Type:     EventTokenUsed,
		UserID:   t.UserID,
		TokenID:  t.ID,
		ClientID: t.ClientID,
		Success:  true,
		Metadata: map[string]string{
			"kind":     t.Kind.String(),
			"resource": req.Resource,
		},
	})

	return t, nil
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken may return an error when input validation, dependency calls, or security checks fail.
// RefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Rotation revokes the presented token before minting its successors, and
// that revocation is the linearization point: of any number of concurrent
// calls presenting the same value, exactly one obtains a pair; the rest see
// [ErrTokenRevoked]. The new tokens inherit user, client, scopes, origins,
// and metadata from the old one.
//
//	Docs: docs/tokens.md
func (e *Engine) RefreshToken(ctx context.Context, refreshValue, clientID string) (*TokenPair, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	now := e.now()

	refuse := func(cause error) (*TokenPair, error) {
		e.metricInc(MetricRefreshFailure)
		return nil, cause
	}

	t, err := e.tokens.ByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			hit, herr := e.blacklist.ContainsHash(ctx, internal.HashValue(refreshValue))
			if herr == nil && hit {
				err = ErrTokenRevoked
			}
		}
		return refuse(err)
	}

	if t.Kind != KindRefresh {
		return refuse(ErrNotRefreshToken)
	}
	if t.Status != StatusActive {
		return refuse(statusError(t.Status))
	}

	hit, err := e.blacklist.Contains(ctx, t.ID)
	if err != nil {
		return refuse(err)
	}
	if hit {
		return refuse(ErrTokenRevoked)
	}

	if !t.ExpiresAt.After(now) {
		e.expireToken(ctx, t, now)
		return refuse(ErrTokenExpired)
	}

	if t.ClientID != "" && clientID != t.ClientID {
		return refuse(ErrClientMismatch)
	}

	// Revoking the presented token is the linearization point. Exactly one
	// concurrent caller passes this line for a given token.
	if _, err := e.tokens.MarkStatus(ctx, t.ID, StatusRevoked, now); err != nil {
		if errors.Is(err, ErrTokenNotActive) {
			return refuse(ErrTokenRevoked)
		}
		return refuse(err)
	}
	e.addBlacklistEntry(ctx, t, now, t.UserID, "rotated")
	e.metricInc(MetricTokenRevoked)

	access, err := e.issueToken(ctx, TokenRequest{
		Kind:     KindAccess,
		UserID:   t.UserID,
		ClientID: t.ClientID,
		Scopes:   t.Scopes,
		Origins:  t.Origins,
		Metadata: cloneStringMap(t.Metadata),
	})
	if err != nil {
		// The presented token is already burned; the caller must
		// reauthenticate rather than retry with it.
		return refuse(fmt.Errorf("rotation mint: %w", err))
	}
	refresh, err := e.issueToken(ctx, TokenRequest{
		Kind:     KindRefresh,
		UserID:   t.UserID,
		ClientID: t.ClientID,
		Scopes:   t.Scopes,
		Origins:  t.Origins,
		Metadata: cloneStringMap(t.Metadata),
	})
	if err != nil {
		return refuse(fmt.Errorf("rotation mint: %w", err))
	}

	e.metricInc(MetricRefreshSuccess)
	e.publish(ctx, Event{
		Type:     EventTokenRefreshed,
		UserID:   t.UserID,
		TokenID:  refresh.ID,
		ClientID: t.ClientID,
		Success:  true,
		Metadata: map[string]string{
			"rotated_from":    t.ID,
			"access_token_id": access.ID,
		},
	})

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// RevokeToken describes the revoketoken operation and its observable behavior.
//
// RevokeToken may return an error when input validation, dependency calls, or security checks fail.
// RevokeToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The bool reports whether the token is revoked once the call returns: true
// for the winning caller and for repeats against an already-revoked id,
// false for ids that are unknown or in another terminal state. Errors are
// reserved for infrastructure failures.
//
//	Docs: docs/tokens.md
func (e *Engine) RevokeToken(ctx context.Context, tokenID, reason, actor string) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	now := e.now()

	t, err := e.tokens.ByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	switch t.Status {
	case StatusRevoked:
		// Repeat call: re-ensure the blacklist entry and report success.
		e.addBlacklistEntry(ctx, t, now, actor, reason)
		return true, nil
	case StatusExpired, StatusSuspended:
		return false, nil
	}

	marked, err := e.tokens.MarkStatus(ctx, tokenID, StatusRevoked, now)
	if err != nil {
		if errors.Is(err, ErrTokenNotActive) {
			return marked != nil && marked.Status == StatusRevoked, nil
		}
		return false, err
	}

	e.addBlacklistEntry(ctx, marked, now, actor, reason)
	e.metricInc(MetricTokenRevoked)
	e.publish(ctx, Event{
		Type:    EventTokenRevoked,
		UserID:  marked.UserID,
		TokenID: marked.ID,
		Success: true,
		Metadata: map[string]string{
			"reason": reason,
			"actor":  actor,
		},
	})

	return true, nil
}

// SuspendToken describes the suspendtoken operation and its observable behavior.
//
// SuspendToken may return an error when input validation, dependency calls, or security checks fail.
// SuspendToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Suspension is terminal and administrative: the value leaves the live
// index but no blacklist entry is written, so a suspended value presents as
// unknown while by-id introspection still reports the suspended status.
//
//	Docs: docs/tokens.md
func (e *Engine) SuspendToken(ctx context.Context, tokenID, reason, actor string) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}

	now := e.now()

	t, err := e.tokens.ByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	switch t.Status {
	case StatusSuspended:
		return true, nil
	case StatusExpired, StatusRevoked:
		return false, nil
	}

	marked, err := e.tokens.MarkStatus(ctx, tokenID, StatusSuspended, now)
	if err != nil {
		if errors.Is(err, ErrTokenNotActive) {
			return marked != nil && marked.Status == StatusSuspended, nil
		}
		return false, err
	}

	e.metricInc(MetricTokenSuspended)
	e.publish(ctx, Event{
		Type:    EventTokenSuspended,
		UserID:  marked.UserID,
		TokenID: marked.ID,
		Success: true,
		Metadata: map[string]string{
			"reason": reason,
			"actor":  actor,
		},
	})

	return true, nil
}

// RevokeUserTokens describes the revokeusertokens operation and its observable behavior.
//
// RevokeUserTokens may return an error when input validation, dependency calls, or security checks fail.
// RevokeUserTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Only Active tokens are touched; kind nil means every kind. The returned
// count is the number of tokens this call transitioned. Tokens that lose a
// concurrent race to another transition are skipped, not errors.
//
//	Docs: docs/tokens.md
func (e *Engine) RevokeUserTokens(ctx context.Context, userID string, kind *TokenKind, reason, actor string) (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}

	active := StatusActive
	list, err := e.tokens.ForUser(ctx, userID, kind, &active)
	if err != nil {
		return 0, err
	}

	now := e.now()
	revoked := 0
	for _, t := range list {
		ok, err := e.revokeActive(ctx, t.ID, now, actor, reason)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}

	return revoked, nil
}

// revokeActive transitions one Active token to Revoked with the standard
// side effects: blacklist entry, metric, event. A token that lost the race
// to another transition reports false with no error.
func (e *Engine) revokeActive(ctx context.Context, tokenID string, now time.Time, actor, reason string) (bool, error) {
	marked, err := e.tokens.MarkStatus(ctx, tokenID, StatusRevoked, now)
	if err != nil {
		if errors.Is(err, ErrTokenNotActive) || errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	e.addBlacklistEntry(ctx, marked, now, actor, reason)
	e.metricInc(MetricTokenRevoked)
	e.publish(ctx, Event{
		Type:    EventTokenRevoked,
		UserID:  marked.UserID,
		TokenID: marked.ID,
		Success: true,
		Metadata: map[string]string{
			"reason": reason,
			"actor":  actor,
		},
	})

	return true, nil
}

// ParseBearer describes the parsebearer operation and its observable behavior.
//
// ParseBearer may return an error when input validation, dependency calls, or security checks fail.
// ParseBearer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// ParseBearer verifies a signed Access or Session value offline: signature,
// issuer, audience, and time window, with no store round-trip. It cannot
// see revocations; callers that must honor the blacklist use
// [Engine.ValidateToken].
//
//	Docs: docs/tokens.md
func (e *Engine) ParseBearer(value string) (*jwt.Claims, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	claims, err := e.jwt.Parse(value)
	if err != nil {
		if jwt.IsExpired(err) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	return claims, nil
}

// expireToken performs the lazy Active to Expired flip. Only the winner of
// the store transition publishes, so concurrent validations of a stale
// token emit one expiry event.
func (e *Engine) expireToken(ctx context.Context, t *Token, now time.Time) {
	if _, err := e.tokens.MarkStatus(ctx, t.ID, StatusExpired, now); err != nil {
		return
	}
	e.metricInc(MetricTokenExpired)
	e.publish(ctx, Event{
		Type:    EventTokenExpired,
		UserID:  t.UserID,
		TokenID: t.ID,
		Metadata: map[string]string{
			"kind": t.Kind.String(),
		},
	})
}

// addBlacklistEntry records the revocation denylist entry. Failures are
// logged and not returned: the status transition has already committed and
// the live index no longer resolves the value, so the entry is a second
// fence, not the primary one.
func (e *Engine) addBlacklistEntry(ctx context.Context, t *Token, now time.Time, actor, reason string) {
	err := e.blacklist.Add(ctx, &BlacklistEntry{
		TokenID:   t.ID,
		ValueHash: internal.HashValue(t.Value),
		RevokedAt: now,
		Actor:     actor,
		Reason:    reason,
		ExpiresAt: t.ExpiresAt,
	})
	if err != nil {
		log.Print("goidentity: blacklist add: ", err)
	}
}

// observeUsage feeds the tracker and publishes an anomaly signal when the
// token's recent pattern crosses a threshold. Detection is advisory; it
// never revokes.
func (e *Engine) observeUsage(ctx context.Context, t *Token, origin, resource string, now time.Time, success bool) {
	if e.usage == nil {
		return
	}

	e.usage.Record(UsageRecord{
		TokenID:  t.ID,
		UserID:   t.UserID,
		At:       now,
		Origin:   origin,
		Resource: resource,
		Success:  success,
	})

	sig := e.usage.Detect(t.ID, now)
	if sig == nil {
		return
	}
	e.metricInc(MetricAnomalyDetected)
	e.publish(ctx, Event{
		Type:    EventSuspiciousUsage,
		UserID:  t.UserID,
		TokenID: t.ID,
		Metadata: map[string]string{
			"anomaly": sig.Kind.String(),
			"count":   strconv.Itoa(sig.Count),
			"window":  sig.Window.String(),
		},
	})
}

// statusError maps a non-Active status to its sentinel.
func statusError(s TokenStatus) error {
	switch s {
	case StatusExpired:
		return ErrTokenExpired
	case StatusRevoked:
		return ErrTokenRevoked
	case StatusSuspended:
		return ErrTokenSuspended
	default:
		return ErrTokenNotActive
	}
}

// originAllowed applies the origin allow-list. Entries are exact strings or
// CIDR blocks. An empty list is unrestricted; a restricted list with an
// unknown caller origin fails closed.
func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	if origin == "" {
		return false
	}

	ip := net.ParseIP(origin)
	for _, entry := range allowed {
		if entry == origin {
			return true
		}
		if ip != nil && strings.Contains(entry, "/") {
			if _, block, err := net.ParseCIDR(entry); err == nil && block.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package goIdentity

import (
	"context"
	"time"
)

// statsSoonWindow is the horizon Stats uses for the ExpiringSoon bucket.
const statsSoonWindow = 24 * time.Hour

// defaultUsageLimit caps TokenUsage when the caller passes no limit.
const defaultUsageLimit = 50

// GetUser describes the getuser operation and its observable behavior.
//
// GetUser may return an error when input validation, dependency calls, or security checks fail.
// GetUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.users.ByID(ctx, userID)
}

// GetToken describes the gettoken operation and its observable behavior.
//
// GetToken may return an error when input validation, dependency calls, or security checks fail.
// GetToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Lookup is by id, not value, so it resolves tokens in any status. This is
// the introspection path that still sees suspended and revoked records
// after their values have left the live index.
//
//	Docs: docs/tokens.md
func (e *Engine) GetToken(ctx context.Context, tokenID string) (*Token, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.tokens.ByID(ctx, tokenID)
}

// UserTokens describes the usertokens operation and its observable behavior.
//
// UserTokens may return an error when input validation, dependency calls, or security checks fail.
// UserTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Nil kind or status filters mean any.
//
//	Docs: docs/tokens.md
func (e *Engine) UserTokens(ctx context.Context, userID string, kind *TokenKind, status *TokenStatus) ([]*Token, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	return e.tokens.ForUser(ctx, userID, kind, status)
}

// TokenUsage describes the tokenusage operation and its observable behavior.
//
// TokenUsage may return an error when input validation, dependency calls, or security checks fail.
// TokenUsage does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Records come back newest first. A non-positive limit selects a default of
// fifty. The token id must resolve, in any status; usage of a token the
// store has never seen reports [ErrTokenNotFound] rather than an empty
// list.
//
//	Docs: docs/tokens.md
func (e *Engine) TokenUsage(ctx context.Context, tokenID string, limit int) ([]UsageRecord, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	if _, err := e.tokens.ByID(ctx, tokenID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultUsageLimit
	}
	return e.usage.Recent(tokenID, limit), nil
}

// Stats describes the stats operation and its observable behavior.
//
// Stats may return an error when input validation, dependency calls, or security checks fail.
// Stats does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The snapshot is assembled from several stores without a cross-store lock,
// so counts taken under concurrent writes can be mutually a moment apart.
//
//	Docs: docs/engine.md
func (e *Engine) Stats(ctx context.Context) (*Statistics, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	now := e.now()

	ts, err := e.tokens.Stats(ctx, now, statsSoonWindow)
	if err != nil {
		return nil, err
	}
	blacklisted, err := e.blacklist.Size(ctx)
	if err != nil {
		return nil, err
	}
	liveSessions, err := e.sessions.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		TotalTokens:    ts.Total,
		ActiveTokens:   ts.Active,
		ByKind:         ts.ByKind,
		ByStatus:       ts.ByStatus,
		ExpiredTokens:  ts.Expired,
		ExpiringSoon:   ts.ExpiringSoon,
		BlacklistSize:  blacklisted,
		UsageVolume:    e.usage.Volume(),
		ActiveSessions: liveSessions,
	}, nil
}

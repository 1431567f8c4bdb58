package goIdentity

import (
	"context"
	"time"
)

// UserRepository is the persistence contract for [User] records. Username
// and email act as unique secondary indexes; implementations must enforce
// uniqueness with store-native atomicity. RecordFailure and ResetAttempts
// are the only mutators of the lockout fields and must each be atomic per
// user so a concurrent increment cannot race a reset.
//
//	Docs: docs/stores.md
type UserRepository interface {
	// Create inserts the user. ErrDuplicateUsername or ErrDuplicateEmail
	// reports an index collision; neither index may be claimed when an
	// error is returned.
	Create(ctx context.Context, u *User) error
	ByID(ctx context.Context, id string) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)

	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetMFA(ctx context.Context, id string, enabled bool, secret string) error
	SetActive(ctx context.Context, id string, active bool) error
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// RecordFailure atomically increments the failure counter and, when it
	// reaches max, stamps LockedUntil = now + lockFor. It returns the new
	// counter value and the lockout deadline (zero when not locked).
	RecordFailure(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, time.Time, error)

	// ResetAttempts atomically clears the failure counter and lockout
	// deadline together.
	ResetAttempts(ctx context.Context, id string) error
}

// SessionRepository is the persistence contract for [Session] records.
//
//	Docs: docs/stores.md
type SessionRepository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	SetInactive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	ActiveCount(ctx context.Context) (int, error)

	// ReapExpired marks up to limit sessions whose ExpiresAt precedes now
	// as inactive and returns them so the caller can publish expiry events.
	ReapExpired(ctx context.Context, now time.Time, limit int) ([]*Session, error)
}

// TokenRepository is the persistence contract for [Token] records and the
// live value index. ByValue resolves only Active tokens; MarkStatus and
// ConsumeUse are the two linearization points the engine relies on and must
// be atomic per token id.
//
//	Docs: docs/stores.md
type TokenRepository interface {
	// Insert stores the token and claims its value in the live index.
	Insert(ctx context.Context, t *Token) error
	ByID(ctx context.Context, id string) (*Token, error)

	// ByValue resolves a live (Active) token by its opaque value.
	// Values of tokens in any other status answer ErrTokenNotFound.
	ByValue(ctx context.Context, value string) (*Token, error)

	// ConsumeUse atomically increments the use counter and stamps
	// LastUsedAt, refusing the increment with ErrTokenUseExceeded once the
	// counter has reached max (max 0 means unlimited) and with
	// ErrTokenNotActive when the token left Active concurrently. The
	// returned count is the post-increment value. Two concurrent callers
	// never obtain the same count and never push the counter past max.
	ConsumeUse(ctx context.Context, id string, max int64, now time.Time) (int64, error)

	// MarkStatus transitions the token from Active to the given terminal
	// status and removes its value from the live index in the same atomic
	// step. A caller that loses the race to another transition receives
	// ErrTokenNotActive along with the current record.
	MarkStatus(ctx context.Context, id string, status TokenStatus, now time.Time) (*Token, error)

	// ForUser lists the user's tokens, optionally filtered by kind and
	// status (nil means any).
	ForUser(ctx context.Context, userID string, kind *TokenKind, status *TokenStatus) ([]*Token, error)

	// ReapExpired transitions up to limit Active tokens whose ExpiresAt
	// precedes now, or whose use ceiling is exhausted, to Expired and
	// returns them.
	ReapExpired(ctx context.Context, now time.Time, limit int) ([]*Token, error)

	Stats(ctx context.Context, now time.Time, soonWindow time.Duration) (TokenStats, error)
}

// TokenStats is the aggregate view a [TokenRepository] reports for
// [Engine.Stats].
type TokenStats struct {
	Total        int
	Active       int
	Expired      int
	ExpiringSoon int
	ByKind       map[string]int
	ByStatus     map[string]int
}

// BlacklistRepository is the persistence contract for [BlacklistEntry]
// records. Contains and ContainsHash sit on the validation hot path and
// must answer without scanning.
//
//	Docs: docs/stores.md
type BlacklistRepository interface {
	// Add inserts the entry. Re-adding the same token id overwrites the
	// previous entry and is not an error.
	Add(ctx context.Context, e *BlacklistEntry) error
	Contains(ctx context.Context, tokenID string) (bool, error)
	ContainsHash(ctx context.Context, valueHash string) (bool, error)

	// Reap removes up to limit entries whose original ExpiresAt precedes
	// now and returns how many were dropped.
	Reap(ctx context.Context, now time.Time, limit int) (int, error)
	Size(ctx context.Context) (int, error)
}

package redistore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const (
	createStatusOK          int64 = 0
	createStatusDupUsername int64 = 1
	createStatusDupEmail    int64 = 2
)

// createUserScript claims both uniqueness indexes and writes the record in
// one step, so a rejected create never leaves a half-claimed index behind.
const createUserScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 1
end
if redis.call("EXISTS", KEYS[3]) == 1 then
  return 2
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
return 0
`

var createUserLua = redis.NewScript(createUserScript)

// recordFailureScript increments the failure counter and stamps the
// lockout deadline in the same script, so a concurrent reset cannot land
// between the two writes. The deadline is carried as a string because a
// nanosecond timestamp does not survive Lua number precision.
const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {1, 0, "0"}
end
local attempts = redis.call("HINCRBY", KEYS[1], "fa", 1)
local max = tonumber(ARGV[1])
if max > 0 and attempts >= max then
  redis.call("HSET", KEYS[1], "lu", ARGV[2])
  return {0, attempts, ARGV[2]}
end
return {0, attempts, redis.call("HGET", KEYS[1], "lu") or "0"}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// UserStore is a Redis-backed [goIdentity.UserRepository]. Unlike tokens
// and sessions there is no identity blob: nearly every user field has a
// dedicated mutator, so the record is a plain hash the scripts can address
// field by field.
//
//	Docs: docs/stores.md
type UserStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewUserStore builds a user store over the given options.
func NewUserStore(opts Options) *UserStore {
	opts = opts.withDefaults()
	return &UserStore{
		redis:  opts.Client,
		prefix: opts.Prefix,
	}
}

func (s *UserStore) recordKey(id string) string {
	return s.prefix + ":u:" + id
}

func (s *UserStore) usernameKey(username string) string {
	return s.prefix + ":un:" + normalizeIndexKey(username)
}

func (s *UserStore) emailKey(email string) string {
	return s.prefix + ":ue:" + normalizeIndexKey(email)
}

func normalizeIndexKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Create inserts the user and claims the username and email indexes.
//
//	Performance: 1 Redis round trip.
func (s *UserStore) Create(ctx context.Context, u *goIdentity.User) error {
	args := []interface{}{
		u.ID,
		"id", u.ID,
		"u", u.Username,
		"e", u.Email,
		"r", formatInt(int64(u.Role)),
		"ph", u.PasswordHash,
		"act", boolField(u.Active),
		"ver", boolField(u.Verified),
		"fa", formatInt(int64(u.FailedAttempts)),
		"lu", formatInt(unixNano(u.LockedUntil)),
		"mfa", boolField(u.MFAEnabled),
		"ms", u.MFASecret,
		"cr", formatInt(unixNano(u.CreatedAt)),
		"ll", formatInt(unixNano(u.LastLoginAt)),
	}

	code, err := createUserLua.Run(ctx, s.redis,
		[]string{s.recordKey(u.ID), s.usernameKey(u.Username), s.emailKey(u.Email)},
		args...,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	switch code {
	case createStatusOK:
		return nil
	case createStatusDupUsername:
		return goIdentity.ErrDuplicateUsername
	case createStatusDupEmail:
		return goIdentity.ErrDuplicateEmail
	default:
		return fmt.Errorf("%w: unexpected create status %d", ErrCorruptRecord, code)
	}
}

// ByID fetches a user record.
//
//	Performance: 1 Redis HGETALL.
func (s *UserStore) ByID(ctx context.Context, id string) (*goIdentity.User, error) {
	return s.readUser(ctx, id)
}

// ByUsername resolves a user through the username index. Lookups are
// case-insensitive, matching the claim made at create time.
func (s *UserStore) ByUsername(ctx context.Context, username string) (*goIdentity.User, error) {
	return s.byIndex(ctx, s.usernameKey(username))
}

// ByEmail resolves a user through the email index.
func (s *UserStore) ByEmail(ctx context.Context, email string) (*goIdentity.User, error) {
	return s.byIndex(ctx, s.emailKey(email))
}

func (s *UserStore) byIndex(ctx context.Context, indexKey string) (*goIdentity.User, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goIdentity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return s.readUser(ctx, id)
}

// UpdatePasswordHash replaces the stored credential hash.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.setFields(ctx, id, "ph", hash)
}

// SetMFA stores the second-factor enrollment state and secret together.
func (s *UserStore) SetMFA(ctx context.Context, id string, enabled bool, secret string) error {
	return s.setFields(ctx, id, "mfa", boolField(enabled), "ms", secret)
}

// SetActive flips the account's active flag.
func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.setFields(ctx, id, "act", boolField(active))
}

// RecordLogin stamps the last successful login time.
func (s *UserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return s.setFields(ctx, id, "ll", formatInt(unixNano(at)))
}

// RecordFailure atomically counts a failed attempt and locks the account
// once the counter reaches max.
//
//	Performance: 1 Redis round trip (EVALSHA).
func (s *UserStore) RecordFailure(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, time.Time, error) {
	reply, err := recordFailureLua.Run(ctx, s.redis,
		[]string{s.recordKey(id)},
		formatInt(int64(max)),
		formatInt(unixNano(now.Add(lockFor))),
	).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if len(reply) != 3 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected failure reply", ErrCorruptRecord)
	}

	code, _ := reply[0].(int64)
	if code != 0 {
		return 0, time.Time{}, goIdentity.ErrUserNotFound
	}
	attempts, _ := reply[1].(int64)
	locked := time.Time{}
	if raw, ok := reply[2].(string); ok {
		locked = fromUnixNano(parseIntField(raw))
	}
	return int(attempts), locked, nil
}

// ResetAttempts clears the failure counter and lockout deadline together.
func (s *UserStore) ResetAttempts(ctx context.Context, id string) error {
	return s.setFields(ctx, id, "fa", "0", "lu", "0")
}

func (s *UserStore) setFields(ctx context.Context, id string, pairs ...interface{}) error {
	ok, err := hsetExistingLua.Run(ctx, s.redis, []string{s.recordKey(id)}, pairs...).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if ok == 0 {
		return goIdentity.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) readUser(ctx context.Context, id string) (*goIdentity.User, error) {
	m, err := s.redis.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if len(m) == 0 {
		return nil, goIdentity.ErrUserNotFound
	}
	return rebuildUser(m)
}

func rebuildUser(m map[string]string) (*goIdentity.User, error) {
	if m["id"] == "" {
		return nil, fmt.Errorf("%w: user record missing id", ErrCorruptRecord)
	}
	u := &goIdentity.User{
		ID:             m["id"],
		Username:       m["u"],
		Email:          m["e"],
		Role:           goIdentity.Role(parseIntString(m["r"])),
		PasswordHash:   m["ph"],
		Active:         m["act"] == "1",
		Verified:       m["ver"] == "1",
		FailedAttempts: int(parseIntString(m["fa"])),
		LockedUntil:    fromUnixNano(parseIntString(m["lu"])),
		MFAEnabled:     m["mfa"] == "1",
		MFASecret:      m["ms"],
		CreatedAt:      fromUnixNano(parseIntString(m["cr"])),
		LastLoginAt:    fromUnixNano(parseIntString(m["ll"])),
	}
	return u, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

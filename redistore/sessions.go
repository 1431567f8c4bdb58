package redistore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// saveSessionScript upserts the record and keeps the active counter in
// step across overwrites, so re-saving a session never double-counts it.
const saveSessionScript = `
local was = "0"
if redis.call("EXISTS", KEYS[1]) == 1 then
  was = redis.call("HGET", KEYS[1], "a") or "0"
end
redis.call("HSET", KEYS[1], "b", ARGV[1], "a", ARGV[2], "l", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[4])
if ARGV[5] ~= "0" then
  redis.call("ZADD", KEYS[3], tonumber(ARGV[5]), ARGV[4])
  redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[6]))
end
if ARGV[2] == "1" and was ~= "1" then
  redis.call("INCR", KEYS[4])
elseif ARGV[2] ~= "1" and was == "1" then
  local count = tonumber(redis.call("GET", KEYS[4]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[4])
  elseif count == 1 then
    redis.call("DEL", KEYS[4])
  end
end
return 1
`

var saveSessionLua = redis.NewScript(saveSessionScript)

const setInactiveScript = `
local active = redis.call("HGET", KEYS[1], "a")
if not active then
  return 0
end
if active == "1" then
  redis.call("HSET", KEYS[1], "a", "0")
  local count = tonumber(redis.call("GET", KEYS[2]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[2])
  elseif count == 1 then
    redis.call("DEL", KEYS[2])
  end
end
return 1
`

var setInactiveLua = redis.NewScript(setInactiveScript)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
if existed == 1 then
  local active = redis.call("HGET", KEYS[1], "a")
  redis.call("DEL", KEYS[1])
  if active == "1" then
    local count = tonumber(redis.call("GET", KEYS[4]) or "0")
    if count > 1 then
      redis.call("DECR", KEYS[4])
    elseif count == 1 then
      redis.call("DEL", KEYS[4])
    end
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// reapSessionScript removes one due record and reports whether it was
// still active, returning the blob so the caller can rebuild the session
// for expiry events.
const reapSessionScript = `
local vals = redis.call("HMGET", KEYS[1], "a", "b", "l")
redis.call("ZREM", KEYS[2], ARGV[1])
if not vals[1] then
  return {0, "", "0"}
end
redis.call("DEL", KEYS[1])
if vals[1] == "1" then
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
  return {1, vals[2] or "", vals[3] or "0"}
end
return {0, "", "0"}
`

var reapSessionLua = redis.NewScript(reapSessionScript)

var sessionRecordFields = []string{"b", "a", "l"}

// SessionStore is a Redis-backed [goIdentity.SessionRepository]. Active
// sessions are counted with a guarded counter rather than a scan; the
// sweeper keeps it honest when records lapse.
//
//	Docs: docs/stores.md
type SessionStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewSessionStore builds a session store over the given options.
func NewSessionStore(opts Options) *SessionStore {
	opts = opts.withDefaults()
	return &SessionStore{
		redis:     opts.Client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
	}
}

func (s *SessionStore) recordKey(id string) string {
	return s.prefix + ":s:" + id
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":su:" + userID
}

func (s *SessionStore) expiryKey() string {
	return s.prefix + ":sx"
}

func (s *SessionStore) countKey() string {
	return s.prefix + ":sc"
}

// Save upserts the session record and its indexes in one script.
//
//	Performance: 1 Redis round trip.
func (s *SessionStore) Save(ctx context.Context, sess *goIdentity.Session) error {
	blob, err := encodeSession(sess)
	if err != nil {
		return err
	}

	active := "0"
	if sess.Active {
		active = "1"
	}
	expiresMs := int64(0)
	if !sess.ExpiresAt.IsZero() {
		expiresMs = sess.ExpiresAt.UnixMilli()
	}

	err = saveSessionLua.Run(ctx, s.redis,
		[]string{s.recordKey(sess.ID), s.userKey(sess.UserID), s.expiryKey(), s.countKey()},
		blob,
		active,
		formatInt(unixNano(sess.LastActivity)),
		sess.ID,
		formatInt(expiresMs),
		formatInt(deadlineMilli(sess.ExpiresAt, s.retention)),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return nil
}

// Get fetches a session record regardless of the active flag.
//
//	Performance: 1 Redis HMGET.
func (s *SessionStore) Get(ctx context.Context, id string) (*goIdentity.Session, error) {
	vals, err := s.redis.HMGet(ctx, s.recordKey(id), sessionRecordFields...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return rebuildSession(vals)
}

// Touch stamps the last-activity time without rewriting the record.
func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	ok, err := hsetExistingLua.Run(ctx, s.redis,
		[]string{s.recordKey(id)},
		"l", formatInt(unixNano(at)),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if ok == 0 {
		return goIdentity.ErrSessionNotFound
	}
	return nil
}

// SetInactive clears the active flag and decrements the active counter at
// most once per session.
func (s *SessionStore) SetInactive(ctx context.Context, id string) error {
	ok, err := setInactiveLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), s.countKey()},
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if ok == 0 {
		return goIdentity.ErrSessionNotFound
	}
	return nil
}

// Delete removes the record and every index entry. Deleting an unknown
// session is not an error and deleting twice never double-decrements the
// counter.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	// The owning user is only recorded in the blob. A session never
	// changes user, so reading it ahead of the delete script is safe.
	userKey := s.userKey("")
	blob, err := s.redis.HGet(ctx, s.recordKey(id), "b").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if err == nil {
		if sess, decodeErr := decodeSession([]byte(blob)); decodeErr == nil {
			userKey = s.userKey(sess.UserID)
		}
	}
	return s.deleteOne(ctx, id, userKey).err
}

type deleteResult struct {
	existed bool
	err     error
}

func (s *SessionStore) deleteOne(ctx context.Context, id, userKey string) deleteResult {
	existed, err := deleteSessionLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), userKey, s.expiryKey(), s.countKey()},
		id,
	).Int64()
	if err != nil {
		return deleteResult{err: fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)}
	}
	return deleteResult{existed: existed == 1}
}

// DeleteAllForUser drops every session in the user's index and returns how
// many records actually existed.
//
//	Performance: SMEMBERS + one EVALSHA per session.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	count := 0
	for _, id := range ids {
		res := s.deleteOne(ctx, id, userKey)
		if res.err != nil {
			return count, res.err
		}
		if res.existed {
			count++
		}
	}
	if err := s.redis.Del(ctx, userKey).Err(); err != nil {
		return count, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return count, nil
}

// ActiveCount reads the guarded counter.
//
//	Performance: 1 Redis GET.
func (s *SessionStore) ActiveCount(ctx context.Context) (int, error) {
	n, err := s.redis.Get(ctx, s.countKey()).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return n, nil
}

// ReapExpired deletes up to limit due session records and returns the ones
// that were still active so the caller can publish expiry events.
func (s *SessionStore) ReapExpired(ctx context.Context, now time.Time, limit int) ([]*goIdentity.Session, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: formatInt(now.UnixMilli())}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	var expired []*goIdentity.Session
	for _, id := range ids {
		reply, err := reapSessionLua.Run(ctx, s.redis,
			[]string{s.recordKey(id), s.expiryKey(), s.countKey()},
			id,
		).Slice()
		if err != nil {
			return expired, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
		}
		if len(reply) != 3 {
			return expired, fmt.Errorf("%w: unexpected reap reply", ErrCorruptRecord)
		}
		wasActive, _ := reply[0].(int64)
		if wasActive != 1 {
			continue
		}
		blob, _ := reply[1].(string)
		sess, err := decodeSession([]byte(blob))
		if err != nil {
			continue
		}
		sess.Active = false
		if last, ok := reply[2].(string); ok {
			sess.LastActivity = fromUnixNano(parseIntField(last))
		}
		expired = append(expired, sess)
	}

	if len(expired) > 0 {
		// Tidy the user indexes now that the records are gone.
		_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, sess := range expired {
				pipe.SRem(ctx, s.userKey(sess.UserID), sess.ID)
			}
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
		}
	}
	return expired, nil
}

func rebuildSession(vals []interface{}) (*goIdentity.Session, error) {
	if len(vals) != len(sessionRecordFields) {
		return nil, goIdentity.ErrSessionNotFound
	}
	blob, ok := vals[0].(string)
	if !ok {
		return nil, goIdentity.ErrSessionNotFound
	}

	sess, err := decodeSession([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if a, ok := vals[1].(string); ok {
		sess.Active = a == "1"
	}
	sess.LastActivity = fromUnixNano(parseIntField(vals[2]))
	return sess, nil
}

package redistore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const (
	insertStatusOK             int64 = 0
	insertStatusIDCollision    int64 = 1
	insertStatusValueCollision int64 = 2
)

const insertTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 1
end
if ARGV[6] == "1" and redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("HSET", KEYS[1], "b", ARGV[1], "v", ARGV[2], "s", ARGV[3], "u", ARGV[4], "l", ARGV[5])
if ARGV[6] == "1" then
  redis.call("SET", KEYS[2], ARGV[7])
  if ARGV[8] ~= "0" then
    redis.call("PEXPIREAT", KEYS[2], tonumber(ARGV[8]))
  end
end
redis.call("SADD", KEYS[3], ARGV[7])
if ARGV[6] == "1" and ARGV[8] ~= "0" then
  redis.call("ZADD", KEYS[4], tonumber(ARGV[8]), ARGV[7])
end
if ARGV[9] ~= "0" then
  redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[9]))
end
return 0
`

var insertTokenLua = redis.NewScript(insertTokenScript)

const (
	consumeStatusOK       int64 = 0
	consumeStatusNotFound int64 = 1
	consumeStatusInactive int64 = 2
	consumeStatusExceeded int64 = 3
)

// consumeUseScript increments the use counter behind the same status and
// ceiling checks the memory store applies under its mutex. A token that
// just consumed its final use is rescheduled to "now" in the expiry index
// so the next sweep retires it.
const consumeUseScript = `
local status = redis.call("HGET", KEYS[1], "s")
if not status then
  return {1, 0}
end
if status ~= "0" then
  return {2, tonumber(redis.call("HGET", KEYS[1], "u") or "0")}
end
local max = tonumber(ARGV[1])
local uses = tonumber(redis.call("HGET", KEYS[1], "u") or "0")
if max > 0 and uses >= max then
  return {3, uses}
end
uses = redis.call("HINCRBY", KEYS[1], "u", 1)
redis.call("HSET", KEYS[1], "l", ARGV[2])
if max > 0 and uses >= max then
  redis.call("ZADD", KEYS[2], "XX", tonumber(ARGV[3]), ARGV[4])
end
return {0, uses}
`

var consumeUseLua = redis.NewScript(consumeUseScript)

const (
	markStatusOK       int64 = 0
	markStatusNotFound int64 = 1
	markStatusInactive int64 = 2
)

// markStatusScript is the single linearization point for leaving Active:
// the status flip and the live-index removal happen in one script so no
// reader can observe a non-active token through the value index.
const markStatusScript = `
local status = redis.call("HGET", KEYS[1], "s")
if not status then
  return 1
end
if status ~= "0" then
  return 2
end
redis.call("HSET", KEYS[1], "s", ARGV[1])
local value = redis.call("HGET", KEYS[1], "v")
if value then
  redis.call("DEL", ARGV[2] .. value)
end
redis.call("ZREM", KEYS[2], ARGV[3])
return 0
`

var markStatusLua = redis.NewScript(markStatusScript)

var tokenRecordFields = []string{"b", "v", "s", "u", "l"}

// TokenStore is a Redis-backed [goIdentity.TokenRepository]. Records are
// hashes holding a versioned identity blob plus the mutable fields the
// scripts above touch; an expiry-ordered ZSET drives the sweeper.
//
//	Docs: docs/stores.md
type TokenStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewTokenStore builds a token store over the given options.
func NewTokenStore(opts Options) *TokenStore {
	opts = opts.withDefaults()
	return &TokenStore{
		redis:     opts.Client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
	}
}

func (s *TokenStore) recordKey(id string) string {
	return s.prefix + ":t:" + id
}

func (s *TokenStore) valueKey(value string) string {
	return s.prefix + ":tv:" + value
}

func (s *TokenStore) valuePrefix() string {
	return s.prefix + ":tv:"
}

func (s *TokenStore) userKey(userID string) string {
	return s.prefix + ":tu:" + userID
}

func (s *TokenStore) expiryKey() string {
	return s.prefix + ":tx"
}

// Insert stores the token and, when it is Active, claims its value in the
// live index. Both collision checks and every index write run in one
// script.
//
//	Performance: 1 Redis round trip.
func (s *TokenStore) Insert(ctx context.Context, t *goIdentity.Token) error {
	blob, err := encodeToken(t)
	if err != nil {
		return err
	}

	active := "0"
	if t.Status == goIdentity.StatusActive {
		active = "1"
	}
	expiresMs := int64(0)
	if !t.ExpiresAt.IsZero() {
		expiresMs = t.ExpiresAt.UnixMilli()
	}

	code, err := insertTokenLua.Run(ctx, s.redis,
		[]string{s.recordKey(t.ID), s.valueKey(t.Value), s.userKey(t.UserID), s.expiryKey()},
		blob,
		t.Value,
		formatInt(int64(t.Status)),
		formatInt(t.UseCount),
		formatInt(unixNano(t.LastUsedAt)),
		active,
		t.ID,
		formatInt(expiresMs),
		formatInt(deadlineMilli(t.ExpiresAt, s.retention)),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	switch code {
	case insertStatusOK:
		return nil
	case insertStatusIDCollision:
		return errors.New("token id collision")
	case insertStatusValueCollision:
		return errors.New("token value collision")
	default:
		return fmt.Errorf("%w: unexpected insert status %d", ErrCorruptRecord, code)
	}
}

// ByID fetches a token record regardless of status.
//
//	Performance: 1 Redis HMGET.
func (s *TokenStore) ByID(ctx context.Context, id string) (*goIdentity.Token, error) {
	return s.readToken(ctx, id)
}

// ByValue resolves a live token through the value index. Values of tokens
// that left Active answer [goIdentity.ErrTokenNotFound]: the index entry is
// removed in the same script as the status flip.
//
//	Performance: 2 Redis round trips (GET + HMGET).
func (s *TokenStore) ByValue(ctx context.Context, value string) (*goIdentity.Token, error) {
	id, err := s.redis.Get(ctx, s.valueKey(value)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goIdentity.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return s.readToken(ctx, id)
}

// ConsumeUse atomically increments the use counter and stamps the last-use
// time. Concurrent callers serialize inside the script, so no two of them
// see the same count and the counter never passes max.
//
//	Performance: 1 Redis round trip (EVALSHA).
func (s *TokenStore) ConsumeUse(ctx context.Context, id string, max int64, now time.Time) (int64, error) {
	reply, err := consumeUseLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), s.expiryKey()},
		formatInt(max),
		formatInt(unixNano(now)),
		formatInt(now.UnixMilli()),
		id,
	).Slice()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	if len(reply) != 2 {
		return 0, fmt.Errorf("%w: unexpected consume reply", ErrCorruptRecord)
	}
	code, _ := reply[0].(int64)
	count, _ := reply[1].(int64)

	switch code {
	case consumeStatusOK:
		return count, nil
	case consumeStatusNotFound:
		return 0, goIdentity.ErrTokenNotFound
	case consumeStatusInactive:
		return count, goIdentity.ErrTokenNotActive
	case consumeStatusExceeded:
		return count, goIdentity.ErrTokenUseExceeded
	default:
		return 0, fmt.Errorf("%w: unexpected consume status %d", ErrCorruptRecord, code)
	}
}

// MarkStatus transitions the token out of Active and removes its value
// from the live index in one script. Exactly one of any set of concurrent
// callers wins; the rest receive [goIdentity.ErrTokenNotActive] with the
// current record.
//
//	Performance: 2 Redis round trips (EVALSHA + HMGET).
func (s *TokenStore) MarkStatus(ctx context.Context, id string, status goIdentity.TokenStatus, now time.Time) (*goIdentity.Token, error) {
	code, err := s.runMarkStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	switch code {
	case markStatusOK:
		return s.readToken(ctx, id)
	case markStatusNotFound:
		return nil, goIdentity.ErrTokenNotFound
	case markStatusInactive:
		cur, readErr := s.readToken(ctx, id)
		if readErr != nil {
			return nil, goIdentity.ErrTokenNotActive
		}
		return cur, goIdentity.ErrTokenNotActive
	default:
		return nil, fmt.Errorf("%w: unexpected mark status %d", ErrCorruptRecord, code)
	}
}

func (s *TokenStore) runMarkStatus(ctx context.Context, id string, status goIdentity.TokenStatus) (int64, error) {
	code, err := markStatusLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), s.expiryKey()},
		formatInt(int64(status)),
		s.valuePrefix(),
		id,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return code, nil
}

// ForUser lists the user's tokens through the per-user index, optionally
// filtered by kind and status. Records the retention backstop already
// reclaimed are skipped.
//
//	Performance: SMEMBERS + one pipelined HMGET per token.
func (s *TokenStore) ForUser(ctx context.Context, userID string, kind *goIdentity.TokenKind, status *goIdentity.TokenStatus) ([]*goIdentity.Token, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	out := make([]*goIdentity.Token, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.recordKey(id), tokenRecordFields...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	for _, cmd := range cmds {
		t, err := rebuildToken(cmd.Val())
		if err != nil {
			if errors.Is(err, goIdentity.ErrTokenNotFound) {
				continue
			}
			return nil, err
		}
		if kind != nil && t.Kind != *kind {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ReapExpired walks the expiry index and retires due tokens through the
// same status-flip script validation uses, so a sweep can never race a
// revocation into a double transition.
func (s *TokenStore) ReapExpired(ctx context.Context, now time.Time, limit int) ([]*goIdentity.Token, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: formatInt(now.UnixMilli())}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	var expired []*goIdentity.Token
	for _, id := range ids {
		code, err := s.runMarkStatus(ctx, id, goIdentity.StatusExpired)
		if err != nil {
			return expired, err
		}
		switch code {
		case markStatusOK:
			t, err := s.readToken(ctx, id)
			if err == nil {
				expired = append(expired, t)
			}
		case markStatusNotFound:
			// Orphaned index entry: the record was reclaimed by the
			// retention backstop before the sweeper reached it.
			if err := s.redis.ZRem(ctx, s.expiryKey(), id).Err(); err != nil {
				return expired, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
			}
		}
	}
	return expired, nil
}

// Stats scans all token records and aggregates counts. This is an
// admin-only O(n) operation and must not be used in request hot paths.
func (s *TokenStore) Stats(ctx context.Context, now time.Time, soonWindow time.Duration) (goIdentity.TokenStats, error) {
	stats := goIdentity.TokenStats{
		ByKind:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	soon := now.Add(soonWindow)
	pattern := s.prefix + ":t:*"

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 512).Result()
		if err != nil {
			return stats, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
		}

		if len(keys) > 0 {
			cmds := make([]*redis.SliceCmd, len(keys))
			_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
				for i, key := range keys {
					cmds[i] = pipe.HMGet(ctx, key, tokenRecordFields...)
				}
				return nil
			})
			if err != nil {
				return stats, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
			}

			for _, cmd := range cmds {
				t, err := rebuildToken(cmd.Val())
				if err != nil {
					continue
				}

				stats.Total++
				stats.ByKind[t.Kind.String()]++
				stats.ByStatus[t.Status.String()]++

				switch t.Status {
				case goIdentity.StatusActive:
					stats.Active++
					if soonWindow > 0 && t.ExpiresAt.After(now) && !t.ExpiresAt.After(soon) {
						stats.ExpiringSoon++
					}
				case goIdentity.StatusExpired:
					stats.Expired++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return stats, nil
}

func (s *TokenStore) readToken(ctx context.Context, id string) (*goIdentity.Token, error) {
	vals, err := s.redis.HMGet(ctx, s.recordKey(id), tokenRecordFields...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return rebuildToken(vals)
}

// rebuildToken merges the identity blob with the mutable hash fields.
func rebuildToken(vals []interface{}) (*goIdentity.Token, error) {
	if len(vals) != len(tokenRecordFields) {
		return nil, goIdentity.ErrTokenNotFound
	}
	blob, ok := vals[0].(string)
	if !ok {
		return nil, goIdentity.ErrTokenNotFound
	}

	t, err := decodeToken([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if v, ok := vals[1].(string); ok {
		t.Value = v
	}
	t.Status = goIdentity.TokenStatus(parseIntField(vals[2]))
	t.UseCount = parseIntField(vals[3])
	t.LastUsedAt = fromUnixNano(parseIntField(vals[4]))
	return t, nil
}

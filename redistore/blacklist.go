package redistore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// addBlacklistScript upserts one entry. Re-adding a token id with a new
// value hash retires the old hash mapping so a stale hash can never answer
// a containment check.
const addBlacklistScript = `
local old = redis.call("HGET", KEYS[1], "h")
if old and old ~= "" and old ~= ARGV[2] then
  redis.call("DEL", ARGV[7] .. old)
end
redis.call("HSET", KEYS[1], "h", ARGV[2], "at", ARGV[3], "ac", ARGV[4], "re", ARGV[5], "ex", ARGV[6])
if ARGV[2] ~= "" then
  redis.call("SET", ARGV[7] .. ARGV[2], ARGV[1])
end
redis.call("ZADD", KEYS[2], tonumber(ARGV[8]), ARGV[1])
if tonumber(ARGV[9]) > 0 then
  redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[9]))
  if ARGV[2] ~= "" then
    redis.call("PEXPIREAT", ARGV[7] .. ARGV[2], tonumber(ARGV[9]))
  end
end
return 1
`

var addBlacklistLua = redis.NewScript(addBlacklistScript)

const reapBlacklistScript = `
local hash = redis.call("HGET", KEYS[1], "h")
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
if hash and hash ~= "" then
  redis.call("DEL", ARGV[2] .. hash)
end
return 1
`

var reapBlacklistLua = redis.NewScript(reapBlacklistScript)

// BlacklistStore is a Redis-backed [goIdentity.BlacklistRepository]. Both
// containment checks are single EXISTS calls; nothing on the validation
// path scans. Entries whose backstop TTL fired before a sweep still occupy
// the expiry index until Reap removes them, so Size can briefly over-report
// between the two.
//
//	Docs: docs/stores.md
type BlacklistStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewBlacklistStore builds a blacklist store over the given options.
func NewBlacklistStore(opts Options) *BlacklistStore {
	opts = opts.withDefaults()
	return &BlacklistStore{
		redis:     opts.Client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
	}
}

func (s *BlacklistStore) entryKey(tokenID string) string {
	return s.prefix + ":b:" + tokenID
}

func (s *BlacklistStore) hashKey(valueHash string) string {
	return s.prefix + ":bh:" + valueHash
}

func (s *BlacklistStore) hashPrefix() string {
	return s.prefix + ":bh:"
}

func (s *BlacklistStore) expiryKey() string {
	return s.prefix + ":bx"
}

// Add inserts or overwrites the entry for a token id.
//
//	Performance: 1 Redis round trip.
func (s *BlacklistStore) Add(ctx context.Context, e *goIdentity.BlacklistEntry) error {
	scoreMs := int64(0)
	if !e.ExpiresAt.IsZero() {
		scoreMs = e.ExpiresAt.UnixMilli()
	}

	err := addBlacklistLua.Run(ctx, s.redis,
		[]string{s.entryKey(e.TokenID), s.expiryKey()},
		e.TokenID,
		e.ValueHash,
		formatInt(unixNano(e.RevokedAt)),
		e.Actor,
		e.Reason,
		formatInt(unixNano(e.ExpiresAt)),
		s.hashPrefix(),
		formatInt(scoreMs),
		formatInt(deadlineMilli(e.ExpiresAt, s.retention)),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return nil
}

// Contains answers whether the token id is blacklisted.
//
//	Performance: 1 Redis EXISTS.
func (s *BlacklistStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.entryKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// ContainsHash answers whether a raw value hash is blacklisted.
//
//	Performance: 1 Redis EXISTS.
func (s *BlacklistStore) ContainsHash(ctx context.Context, valueHash string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.hashKey(valueHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Reap removes up to limit entries whose original token expiry has passed
// and reports how many index entries were dropped.
func (s *BlacklistStore) Reap(ctx context.Context, now time.Time, limit int) (int, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: formatInt(now.UnixMilli())}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), rng).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}

	removed := 0
	for _, id := range ids {
		err := reapBlacklistLua.Run(ctx, s.redis,
			[]string{s.entryKey(id), s.expiryKey()},
			id,
			s.hashPrefix(),
		).Err()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
		}
		removed++
	}
	return removed, nil
}

// Size reports the expiry-index cardinality.
//
//	Performance: 1 Redis ZCARD.
func (s *BlacklistStore) Size(ctx context.Context) (int, error) {
	n, err := s.redis.ZCard(ctx, s.expiryKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", goIdentity.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

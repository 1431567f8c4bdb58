package redistore

import (
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCorruptRecord is returned when a stored record cannot be decoded.
// It usually means the key namespace is shared with an unrelated writer or
// the deployment skipped a migration.
var ErrCorruptRecord = errors.New("corrupt store record")

const (
	defaultPrefix    = "goidentity"
	defaultRetention = 24 * time.Hour
)

// Options configure the Redis-backed stores. The zero value of every field
// except Client is usable.
type Options struct {
	// Client is the shared Redis connection. Standalone, sentinel, and
	// cluster clients all satisfy [redis.UniversalClient].
	Client redis.UniversalClient

	// Prefix namespaces every key this package writes. Defaults to
	// "goidentity". Two engines sharing one Redis must use distinct
	// prefixes.
	Prefix string

	// Retention is how long terminal token and session records outlive
	// their expiry before the PEXPIREAT backstop reclaims them. The
	// sweeper normally wins; the TTL only catches deployments where it
	// never runs. Defaults to 24h.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = defaultPrefix
	}
	if o.Retention <= 0 {
		o.Retention = defaultRetention
	}
	return o
}

// Stores bundles the four repositories over one client and namespace.
type Stores struct {
	Users     *UserStore
	Sessions  *SessionStore
	Tokens    *TokenStore
	Blacklist *BlacklistStore
}

// Open builds all four stores from one set of options.
//
//	Docs: docs/stores.md
func Open(opts Options) *Stores {
	return &Stores{
		Users:     NewUserStore(opts),
		Sessions:  NewSessionStore(opts),
		Tokens:    NewTokenStore(opts),
		Blacklist: NewBlacklistStore(opts),
	}
}

const hsetExistingScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`

// hsetExistingLua writes hash fields only when the record already exists,
// so mutators never resurrect a reclaimed record.
var hsetExistingLua = redis.NewScript(hsetExistingScript)

// unixNano flattens a time for storage; the zero time maps to 0 so it
// survives a round trip as the zero time rather than the epoch.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// deadlineMilli computes the PEXPIREAT backstop for a record expiring at
// exp. Zero when the record never expires.
func deadlineMilli(exp time.Time, retention time.Duration) int64 {
	if exp.IsZero() {
		return 0
	}
	return exp.Add(retention).UnixMilli()
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// parseIntField leniently reads an integer hash field from an HMGET reply.
// Missing or malformed fields degrade to zero.
func parseIntField(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	return parseIntString(s)
}

func parseIntString(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

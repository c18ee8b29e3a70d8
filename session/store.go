package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when the backing key-value service cannot
// be reached or times out. Callers must treat it as fatal for the current
// operation, never as "token invalid".
var ErrStoreUnavailable = errors.New("session store unavailable")

// markerValue is the opaque payload of a token validity marker. Only the
// key's existence matters; the value is never inspected.
const markerValue = "available"

const (
	fieldAccessKey  = "accessKey"
	fieldRefreshKey = "refreshKey"
)

// supersedeScript installs a new session record and its two validity markers
// while revoking whatever session the account held before. Running it as a
// single script makes supersession strictly serial per account: there is no
// window in which markers from two different token pairs coexist.
const supersedeScript = `
local old_access = redis.call("HGET", KEYS[1], ARGV[1])
local old_refresh = redis.call("HGET", KEYS[1], ARGV[2])
if old_access then
  redis.call("DEL", old_access)
end
if old_refresh then
  redis.call("DEL", old_refresh)
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], ARGV[1], KEYS[2], ARGV[2], KEYS[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
redis.call("SET", KEYS[2], ARGV[5], "PX", ARGV[3])
redis.call("SET", KEYS[3], ARGV[5], "PX", ARGV[4])
return 1
`

var supersedeLua = redis.NewScript(supersedeScript)

// Record is the per-account session record: the derived keys of the token
// pair currently honored for that account.
type Record struct {
	AccessKey  string
	RefreshKey string
}

// Store wraps the shared key-value service holding session records and token
// validity markers. Every TTL is set in the same command or script as the
// write that creates the entry, so a crash can never leave an entry without
// an expiry.
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a Store backed by the given Redis client. The client and
// its connection pool are owned by the caller.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

// Record reads the session record at accountKey. The second return value is
// false when no record exists.
func (s *Store) Record(ctx context.Context, accountKey string) (Record, bool, error) {
	values, err := s.redis.HMGet(ctx, accountKey, fieldAccessKey, fieldRefreshKey).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec := Record{
		AccessKey:  stringField(values[0]),
		RefreshKey: stringField(values[1]),
	}
	if rec.RefreshKey == "" {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Supersede atomically replaces the account's session. Any markers referenced
// by the prior record are deleted, then the new record is written with
// TTL = refreshTTL and the two markers with their own lifetimes. After it
// returns, exactly one token pair is valid for the account.
func (s *Store) Supersede(ctx context.Context, accountKey string, rec Record, accessTTL, refreshTTL time.Duration) error {
	if rec.AccessKey == "" || rec.RefreshKey == "" {
		return errors.New("session: record keys must be non-empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return errors.New("session: marker lifetimes must be positive")
	}

	err := supersedeLua.Run(
		ctx,
		s.redis,
		[]string{accountKey, rec.AccessKey, rec.RefreshKey},
		fieldAccessKey,
		fieldRefreshKey,
		accessTTL.Milliseconds(),
		refreshTTL.Milliseconds(),
		markerValue,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MarkerAlive reports whether the validity marker at key still exists. A
// missing marker means the token was revoked or its TTL elapsed.
func (s *Store) MarkerAlive(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// Evict deletes the given keys. Deleting keys that are already absent is a
// no-op, so logout of an already-ended session never errors.
func (s *Store) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports store reachability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func stringField(v interface{}) string {
	str, _ := v.(string)
	return str
}

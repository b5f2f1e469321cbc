package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps admission windows in Redis sorted sets so that several
// service replicas share one quota per client. Keys expire on their own one
// window after the last request, so no janitor is needed for this store.
type RedisStore struct {
	client *redis.Client
	quota  int
	span   time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

var _ Store = (*RedisStore)(nil)

// admitScript prunes the window, checks the quota, and records the admission
// in one atomic step. Running these as separate round trips would let
// concurrent requests all observe the pre-admission cardinality and all be
// admitted. The prune bound is exclusive: an entry aged exactly one window
// still holds its slot.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// NewRedisStore connects to the Redis instance at addr and verifies the
// connection before returning.
func NewRedisStore(ctx context.Context, addr string, quota int, span time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, quota: quota, span: span, now: time.Now}, nil
}

// Admit implements Store. Scores are request timestamps in nanoseconds;
// members are unique so same-instant requests are counted individually.
func (s *RedisStore) Admit(ctx context.Context, clientID string) (bool, error) {
	now := s.now()
	res, err := admitScript.Run(ctx, s.client,
		[]string{"ratelimit:" + clientID},
		strconv.FormatInt(now.Add(-s.span).UnixNano(), 10),
		s.quota,
		strconv.FormatInt(now.UnixNano(), 10),
		uuid.NewString(),
		s.span.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("admit %s: %w", clientID, err)
	}
	return res == 1, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix  = "bdpay"
	defaultClaimLease = 10 * time.Minute
)

// claimScript takes a key unless it is in flight, recently completed or
// waiting for its retry time. Processing and complete entries expire with
// their lease.
var claimScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'retry_ready' then
  local retryAt = tonumber(redis.call('HGET', KEYS[1], 'retry_at') or '0')
  if tonumber(ARGV[2]) < retryAt then
    return 0
  end
elseif status then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'processing', 'claim_id', ARGV[1], 'lease_ms', ARGV[3])
redis.call('HDEL', KEYS[1], 'retry_at')
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], KEYS[1], 'PX', ARGV[3])
return 1
`)

var settleScript = redis.NewScript(`
local state = redis.call('GET', KEYS[1])
if not state then
  return 0
end
redis.call('DEL', KEYS[1])
if redis.call('HGET', state, 'claim_id') ~= ARGV[1] then
  return 0
end
if redis.call('HGET', state, 'status') ~= 'processing' then
  return 0
end
local lease = tonumber(redis.call('HGET', state, 'lease_ms') or '600000')
if ARGV[2] == 'complete' then
  redis.call('HSET', state, 'status', 'complete')
  redis.call('PEXPIRE', state, lease)
else
  redis.call('HSET', state, 'status', 'retry_ready', 'retry_at', ARGV[4], 'last_error', ARGV[5])
  local ttl = tonumber(ARGV[4]) - tonumber(ARGV[3]) + lease
  if ttl < lease then
    ttl = lease
  end
  redis.call('PEXPIRE', state, ttl)
end
return 1
`)

// ClaimStore is a core.IdempotencyClaimStore on Redis. Each key lives in a
// hash; a second key maps the issued claim id back to it.
type ClaimStore struct {
	client redis.UniversalClient
	prefix string
	Now    func() time.Time
}

type ClaimOption func(*ClaimStore)

func WithKeyPrefix(prefix string) ClaimOption {
	return func(s *ClaimStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewClaimStore(client redis.UniversalClient, opts ...ClaimOption) (*ClaimStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	store := &ClaimStore{
		client: client,
		prefix: DefaultKeyPrefix,
		Now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *ClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, fmt.Errorf("redisstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("redisstore: claim key is required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	claimID := uuid.NewString()
	taken, err := claimScript.Run(ctx, s.client,
		[]string{s.stateKey(key), s.claimKey(claimID)},
		claimID, s.now().UnixMilli(), lease.Milliseconds(),
	).Int()
	if err != nil {
		return "", false, err
	}
	if taken != 1 {
		return "", false, nil
	}
	return claimID, true, nil
}

func (s *ClaimStore) Complete(ctx context.Context, claimID string) error {
	return s.settle(ctx, claimID, "complete", time.Time{}, nil)
}

func (s *ClaimStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	return s.settle(ctx, claimID, "fail", retryAt, cause)
}

// Attempts reports how many times key has been claimed while its state is
// retained.
func (s *ClaimStore) Attempts(ctx context.Context, key string) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("redisstore: claim store is not configured")
	}
	attempts, err := s.client.HGet(ctx, s.stateKey(strings.TrimSpace(key)), "attempts").Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return attempts, err
}

func (s *ClaimStore) settle(ctx context.Context, claimID, mode string, retryAt time.Time, cause error) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("redisstore: claim id is required")
	}
	now := s.now()
	if retryAt.IsZero() {
		retryAt = now
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	err := settleScript.Run(ctx, s.client,
		[]string{s.claimKey(claimID)},
		claimID, mode, now.UnixMilli(), retryAt.UTC().UnixMilli(), lastError,
	).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *ClaimStore) stateKey(key string) string {
	return s.prefix + ":claim:" + key
}

func (s *ClaimStore) claimKey(claimID string) string {
	return s.prefix + ":claim_id:" + claimID
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.IdempotencyClaimStore = (*ClaimStore)(nil)

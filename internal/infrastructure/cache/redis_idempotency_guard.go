package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only while it still holds this caller's
// token, so a lock that expired and was re-acquired by someone else is
// never released by the original holder
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisIdempotencyGuard implements the join/payment dedupe windows and the
// advisory per-instance lock on Redis
type RedisIdempotencyGuard struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyGuard creates a new Redis-backed guard
func NewRedisIdempotencyGuard(client *redis.Client) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{
		client:    client,
		keyPrefix: "marketing:",
	}
}

// CheckJoinResult returns the cached result for the key, or nil when the
// request has not been seen inside the window
func (g *RedisIdempotencyGuard) CheckJoinResult(ctx context.Context, key marketing.JoinKey) (*marketing.JoinResult, error) {
	raw, err := g.client.Get(ctx, g.keyPrefix+key.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("join dedupe read failed: %w", err)
	}
	var result marketing.JoinResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("join dedupe payload corrupt: %w", err)
	}
	return &result, nil
}

// CacheJoinResult stores the result for the key with the given TTL
func (g *RedisIdempotencyGuard) CacheJoinResult(ctx context.Context, key marketing.JoinKey, result *marketing.JoinResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("join dedupe payload marshal failed: %w", err)
	}
	if err := g.client.Set(ctx, g.keyPrefix+key.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("join dedupe write failed: %w", err)
	}
	return nil
}

// IsPaymentProcessed reports whether the order's payment callback has
// already been handled inside the dedupe window
func (g *RedisIdempotencyGuard) IsPaymentProcessed(ctx context.Context, orderSN string) (bool, error) {
	exists, err := g.client.Exists(ctx, g.paymentKey(orderSN)).Result()
	if err != nil {
		return false, fmt.Errorf("payment dedupe read failed: %w", err)
	}
	return exists > 0, nil
}

// MarkPaymentProcessed records the order's payment callback as handled
func (g *RedisIdempotencyGuard) MarkPaymentProcessed(ctx context.Context, orderSN string, ttl time.Duration) error {
	if err := g.client.Set(ctx, g.paymentKey(orderSN), "1", ttl).Err(); err != nil {
		return fmt.Errorf("payment dedupe write failed: %w", err)
	}
	return nil
}

// WithLock runs fn under the advisory per-instance lock. Acquisition is a
// single SETNX with TTL and fails immediately with LOCK_CONTENTION when the
// lock is held; there is no waiting or retry here.
func (g *RedisIdempotencyGuard) WithLock(ctx context.Context, instanceID uuid.UUID, ttl time.Duration, fn func() error) error {
	lockKey := g.lockKey(instanceID)
	token := uuid.New().String()

	acquired, err := g.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !acquired {
		return shared.ErrLockContention
	}
	defer func() {
		// The TTL reclaims the lock if this release is lost
		_ = unlockScript.Run(ctx, g.client, []string{lockKey}, token).Err()
	}()

	return fn()
}

func (g *RedisIdempotencyGuard) paymentKey(orderSN string) string {
	return g.keyPrefix + "payment:" + orderSN
}

func (g *RedisIdempotencyGuard) lockKey(instanceID uuid.UUID) string {
	return g.keyPrefix + "lock:instance:" + instanceID.String()
}

// Ensure RedisIdempotencyGuard implements IdempotencyGuard
var _ marketing.IdempotencyGuard = (*RedisIdempotencyGuard)(nil)

package cache

import (
	"context"
	"fmt"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// decrementScript runs the check-and-decrement as one atomic step on the
// Redis server. Returns the new remaining count on success, -1 when the key
// does not exist, -2 when the remaining count is below the request.
var decrementScript = redis.NewScript(`
local remaining = redis.call('GET', KEYS[1])
if remaining == false then
	return -1
end
remaining = tonumber(remaining)
local amount = tonumber(ARGV[1])
if remaining < amount then
	return -2
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// incrementIfPresentScript adds stock back only when the key still exists,
// so a release after cache eviction never materializes a phantom count
var incrementIfPresentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('INCRBY', KEYS[1], ARGV[1])
`)

// RedisInventoryStore implements the inventory cache on Redis. All mutations
// run as server-side Lua so concurrent reservations cannot race between the
// check and the decrement.
type RedisInventoryStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisInventoryStore creates a new Redis-backed inventory store
func NewRedisInventoryStore(client *redis.Client) *RedisInventoryStore {
	return &RedisInventoryStore{
		client:    client,
		keyPrefix: "marketing:stock:",
	}
}

func (s *RedisInventoryStore) key(configID uuid.UUID) string {
	return s.keyPrefix + configID.String()
}

// DecrementIfAvailable atomically decrements the remaining count when it is
// at least amount
func (s *RedisInventoryStore) DecrementIfAvailable(ctx context.Context, configID uuid.UUID, amount int64) (marketing.ReserveOutcome, error) {
	result, err := decrementScript.Run(ctx, s.client, []string{s.key(configID)}, amount).Int64()
	if err != nil {
		return marketing.ReserveInsufficient, fmt.Errorf("stock decrement script failed: %w", err)
	}
	switch result {
	case -1:
		return marketing.ReserveMiss, nil
	case -2:
		return marketing.ReserveInsufficient, nil
	default:
		return marketing.ReserveOK, nil
	}
}

// IncrementIfPresent adds amount back only when the key exists
func (s *RedisInventoryStore) IncrementIfPresent(ctx context.Context, configID uuid.UUID, amount int64) error {
	if err := incrementIfPresentScript.Run(ctx, s.client, []string{s.key(configID)}, amount).Err(); err != nil {
		return fmt.Errorf("stock release script failed: %w", err)
	}
	return nil
}

// SetStock (re)initializes the remaining count
func (s *RedisInventoryStore) SetStock(ctx context.Context, configID uuid.UUID, qty int64) error {
	if err := s.client.Set(ctx, s.key(configID), qty, 0).Err(); err != nil {
		return fmt.Errorf("stock set failed: %w", err)
	}
	return nil
}

// Remaining reads the current count; the second result is false when the
// key does not exist
func (s *RedisInventoryStore) Remaining(ctx context.Context, configID uuid.UUID) (int64, bool, error) {
	val, err := s.client.Get(ctx, s.key(configID)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stock read failed: %w", err)
	}
	return val, true, nil
}

// Ensure RedisInventoryStore implements InventoryStore
var _ marketing.InventoryStore = (*RedisInventoryStore)(nil)

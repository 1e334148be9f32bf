package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// guardEntry is a cached value with expiration
type guardEntry struct {
	result    *marketing.JoinResult
	expiresAt time.Time
}

// InMemoryIdempotencyGuard implements the dedupe windows and the advisory
// per-instance lock on local maps. Suitable for single-instance deployments
// and testing.
type InMemoryIdempotencyGuard struct {
	mu       sync.Mutex
	joins    map[string]guardEntry
	payments map[string]time.Time
	locks    map[uuid.UUID]lockEntry
}

// lockEntry carries the holder token so a lock that expired and was taken
// over is never released by the original holder
type lockEntry struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryIdempotencyGuard creates a new in-memory guard
func NewInMemoryIdempotencyGuard() *InMemoryIdempotencyGuard {
	return &InMemoryIdempotencyGuard{
		joins:    make(map[string]guardEntry),
		payments: make(map[string]time.Time),
		locks:    make(map[uuid.UUID]lockEntry),
	}
}

// CheckJoinResult returns the cached result for the key, or nil when the
// request has not been seen inside the window
func (g *InMemoryIdempotencyGuard) CheckJoinResult(ctx context.Context, key marketing.JoinKey) (*marketing.JoinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, exists := g.joins[key.String()]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return e.result, nil
}

// CacheJoinResult stores the result for the key with the given TTL
func (g *InMemoryIdempotencyGuard) CacheJoinResult(ctx context.Context, key marketing.JoinKey, result *marketing.JoinResult, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.joins[key.String()] = guardEntry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// IsPaymentProcessed reports whether the order's payment callback has
// already been handled inside the dedupe window
func (g *InMemoryIdempotencyGuard) IsPaymentProcessed(ctx context.Context, orderSN string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiresAt, exists := g.payments[orderSN]
	if !exists || time.Now().After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// MarkPaymentProcessed records the order's payment callback as handled
func (g *InMemoryIdempotencyGuard) MarkPaymentProcessed(ctx context.Context, orderSN string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.payments[orderSN] = time.Now().Add(ttl)
	return nil
}

// WithLock runs fn under the advisory per-instance lock, failing immediately
// with LOCK_CONTENTION when the lock is held and unexpired
func (g *InMemoryIdempotencyGuard) WithLock(ctx context.Context, instanceID uuid.UUID, ttl time.Duration, fn func() error) error {
	token := uuid.New().String()

	g.mu.Lock()
	if e, held := g.locks[instanceID]; held && time.Now().Before(e.expiresAt) {
		g.mu.Unlock()
		return shared.ErrLockContention
	}
	g.locks[instanceID] = lockEntry{token: token, expiresAt: time.Now().Add(ttl)}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if e, held := g.locks[instanceID]; held && e.token == token {
			delete(g.locks, instanceID)
		}
		g.mu.Unlock()
	}()

	return fn()
}

// Ensure InMemoryIdempotencyGuard implements IdempotencyGuard
var _ marketing.IdempotencyGuard = (*InMemoryIdempotencyGuard)(nil)

package cache

import (
	"context"
	"sync"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/google/uuid"
)

// InMemoryInventoryStore implements the inventory cache on a local map.
// Suitable for single-instance deployments and testing; the mutex gives the
// same check-and-decrement atomicity the Redis script provides.
type InMemoryInventoryStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

// NewInMemoryInventoryStore creates a new in-memory inventory store
func NewInMemoryInventoryStore() *InMemoryInventoryStore {
	return &InMemoryInventoryStore{
		counts: make(map[uuid.UUID]int64),
	}
}

// DecrementIfAvailable atomically decrements the remaining count when it is
// at least amount
func (s *InMemoryInventoryStore) DecrementIfAvailable(ctx context.Context, configID uuid.UUID, amount int64) (marketing.ReserveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, exists := s.counts[configID]
	if !exists {
		return marketing.ReserveMiss, nil
	}
	if remaining < amount {
		return marketing.ReserveInsufficient, nil
	}
	s.counts[configID] = remaining - amount
	return marketing.ReserveOK, nil
}

// IncrementIfPresent adds amount back only when the key exists
func (s *InMemoryInventoryStore) IncrementIfPresent(ctx context.Context, configID uuid.UUID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.counts[configID]; !exists {
		return nil
	}
	s.counts[configID] += amount
	return nil
}

// SetStock (re)initializes the remaining count
func (s *InMemoryInventoryStore) SetStock(ctx context.Context, configID uuid.UUID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[configID] = qty
	return nil
}

// Remaining reads the current count; the second result is false when the
// key does not exist
func (s *InMemoryInventoryStore) Remaining(ctx context.Context, configID uuid.UUID) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining, exists := s.counts[configID]
	return remaining, exists, nil
}

// Ensure InMemoryInventoryStore implements InventoryStore
var _ marketing.InventoryStore = (*InMemoryInventoryStore)(nil)

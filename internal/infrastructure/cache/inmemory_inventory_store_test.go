package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryInventoryStoreDecrement(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryInventoryStore()
	configID := uuid.New()

	t.Run("absent key is a miss", func(t *testing.T) {
		outcome, err := store.DecrementIfAvailable(ctx, configID, 1)
		require.NoError(t, err)
		assert.Equal(t, marketing.ReserveMiss, outcome)
	})

	t.Run("sufficient stock decrements", func(t *testing.T) {
		require.NoError(t, store.SetStock(ctx, configID, 5))

		outcome, err := store.DecrementIfAvailable(ctx, configID, 3)
		require.NoError(t, err)
		assert.Equal(t, marketing.ReserveOK, outcome)

		remaining, exists, err := store.Remaining(ctx, configID)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, int64(2), remaining)
	})

	t.Run("insufficient stock leaves the count untouched", func(t *testing.T) {
		outcome, err := store.DecrementIfAvailable(ctx, configID, 3)
		require.NoError(t, err)
		assert.Equal(t, marketing.ReserveInsufficient, outcome)

		remaining, _, err := store.Remaining(ctx, configID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), remaining)
	})
}

func TestInMemoryInventoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryInventoryStore()
	configID := uuid.New()

	t.Run("absent key is never materialized", func(t *testing.T) {
		require.NoError(t, store.IncrementIfPresent(ctx, configID, 2))
		_, exists, err := store.Remaining(ctx, configID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("present key gets the amount back", func(t *testing.T) {
		require.NoError(t, store.SetStock(ctx, configID, 1))
		require.NoError(t, store.IncrementIfPresent(ctx, configID, 2))

		remaining, _, err := store.Remaining(ctx, configID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), remaining)
	})
}

func TestInMemoryInventoryStoreConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryInventoryStore()
	configID := uuid.New()
	require.NoError(t, store.SetStock(ctx, configID, 50))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.DecrementIfAvailable(ctx, configID, 1)
			require.NoError(t, err)
			if outcome == marketing.ReserveOK {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly the seeded stock is granted, never more
	assert.Equal(t, 50, granted)
	remaining, _, err := store.Remaining(ctx, configID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

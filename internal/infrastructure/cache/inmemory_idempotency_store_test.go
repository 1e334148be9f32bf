package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStoreMarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	t.Run("first mark wins", func(t *testing.T) {
		newly, err := store.MarkProcessed(ctx, "settlement:a", time.Minute)
		require.NoError(t, err)
		assert.True(t, newly)

		newly, err = store.MarkProcessed(ctx, "settlement:a", time.Minute)
		require.NoError(t, err)
		assert.False(t, newly)
	})

	t.Run("IsProcessed reflects the marker", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "settlement:a")
		require.NoError(t, err)
		assert.True(t, processed)

		processed, err = store.IsProcessed(ctx, "settlement:unknown")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("expired marker can be re-marked", func(t *testing.T) {
		newly, err := store.MarkProcessed(ctx, "settlement:b", -time.Second)
		require.NoError(t, err)
		assert.True(t, newly)

		processed, err := store.IsProcessed(ctx, "settlement:b")
		require.NoError(t, err)
		assert.False(t, processed)

		newly, err = store.MarkProcessed(ctx, "settlement:b", time.Minute)
		require.NoError(t, err)
		assert.True(t, newly)
	})
}

func TestInMemoryIdempotencyStoreClose(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	// Close is safe to call twice
	require.NoError(t, store.Close())
}

package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed operation keys to prevent duplicate
// side effects. It backs settlement deduplication: once an instance has been
// settled its key is marked here, so a retried transition does not credit
// the ledger or issue gift assets a second time.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

package marketing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReserveOutcome is the result of the atomic check-and-decrement primitive
type ReserveOutcome int

const (
	// ReserveOK means the stock was decremented
	ReserveOK ReserveOutcome = iota
	// ReserveMiss means the cache key does not exist yet
	ReserveMiss
	// ReserveInsufficient means the remaining count is below the request
	ReserveInsufficient
)

// InventoryStore is the shared-cache surface backing the inventory engine.
// DecrementIfAvailable must execute the read / compare / decrement sequence
// as one indivisible step so concurrent callers cannot race between the
// check and the decrement.
type InventoryStore interface {
	// DecrementIfAvailable atomically decrements the remaining count when it
	// is at least amount, reporting a miss for absent keys
	DecrementIfAvailable(ctx context.Context, configID uuid.UUID, amount int64) (ReserveOutcome, error)

	// IncrementIfPresent adds amount back only when the key exists; it never
	// materializes an absent key
	IncrementIfPresent(ctx context.Context, configID uuid.UUID, amount int64) error

	// SetStock (re)initializes the remaining count
	SetStock(ctx context.Context, configID uuid.UUID, qty int64) error

	// Remaining reads the current count; the second result is false when the
	// key does not exist
	Remaining(ctx context.Context, configID uuid.UUID) (int64, bool, error)
}

// InventoryEngine guards per-activity remaining counts. The cached count is
// not authoritative: on a miss it is re-materialized from the config's rule
// bag and the atomic decrement retried exactly once.
type InventoryEngine struct {
	store  InventoryStore
	logger *zap.Logger
}

// NewInventoryEngine creates a new inventory engine
func NewInventoryEngine(store InventoryStore, logger *zap.Logger) *InventoryEngine {
	return &InventoryEngine{
		store:  store,
		logger: logger,
	}
}

// Reserve claims amount units of the activity's stock under the given mode.
// LAZY_CHECK always succeeds without touching the cache. STRONG_LOCK runs
// the atomic check-and-decrement, reloading the authoritative count from the
// rule bag on a cold key; SOLD_OUT is returned when stock is insufficient.
func (e *InventoryEngine) Reserve(ctx context.Context, cfg *ActivityConfig, amount int64, mode StockMode) error {
	if amount <= 0 {
		return nil
	}
	if mode == StockModeLazyCheck {
		return nil
	}

	outcome, err := e.store.DecrementIfAvailable(ctx, cfg.ID, amount)
	if err != nil {
		return fmt.Errorf("inventory decrement failed: %w", err)
	}

	if outcome == ReserveMiss {
		qty, err := cfg.AuthoritativeStock()
		if err != nil {
			return err
		}
		if err := e.store.SetStock(ctx, cfg.ID, qty); err != nil {
			return fmt.Errorf("inventory reload failed: %w", err)
		}
		e.logger.Info("inventory cache rebuilt from config rules",
			zap.String("config_id", cfg.ID.String()),
			zap.Int64("stock", qty),
		)

		// Exactly one retry after the reload; no retry storm
		outcome, err = e.store.DecrementIfAvailable(ctx, cfg.ID, amount)
		if err != nil {
			return fmt.Errorf("inventory decrement failed: %w", err)
		}
	}

	if outcome != ReserveOK {
		return NewSoldOutError(cfg.ID)
	}
	return nil
}

// Release compensates a prior reservation. It increments only when the key
// still exists, so a cold or expired key is never resurrected into a
// phantom positive count.
func (e *InventoryEngine) Release(ctx context.Context, configID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := e.store.IncrementIfPresent(ctx, configID, amount); err != nil {
		return fmt.Errorf("inventory release failed: %w", err)
	}
	return nil
}

// Seed initializes the remaining count out-of-band, when an activity is
// published or reconfigured
func (e *InventoryEngine) Seed(ctx context.Context, configID uuid.UUID, qty int64) error {
	if qty < 0 {
		return NewSoldOutError(configID)
	}
	if err := e.store.SetStock(ctx, configID, qty); err != nil {
		return fmt.Errorf("inventory seed failed: %w", err)
	}
	return nil
}

// Remaining reads the current cached count for monitoring surfaces
func (e *InventoryEngine) Remaining(ctx context.Context, configID uuid.UUID) (int64, bool, error) {
	return e.store.Remaining(ctx, configID)
}

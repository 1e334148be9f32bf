package marketing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JoinKey identifies one logical join request for deduplication. Optional
// discriminators are folded into the key so the same member can join
// distinct sub-contexts (another group, another SKU) independently.
type JoinKey struct {
	ConfigID uuid.UUID
	MemberID uuid.UUID
	GroupID  *uuid.UUID
	SKUID    string
}

// String renders the cache key for this join request
func (k JoinKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "join:%s:%s", k.ConfigID, k.MemberID)
	if k.GroupID != nil {
		fmt.Fprintf(&b, ":g:%s", k.GroupID)
	}
	if k.SKUID != "" {
		fmt.Fprintf(&b, ":sku:%s", k.SKUID)
	}
	return b.String()
}

// JoinResult is the payload cached per join so a retried request returns
// the original outcome instead of creating a second instance
type JoinResult struct {
	InstanceID uuid.UUID       `json:"instance_id"`
	GroupID    *uuid.UUID      `json:"group_id,omitempty"`
	Status     InstanceStatus  `json:"status"`
	Price      decimal.Decimal `json:"price"`
}

// IdempotencyGuard provides the dedupe windows and the advisory
// per-instance lock. All windows are time-bounded caches, not ledgers: once
// a window expires a retried request re-executes from scratch.
type IdempotencyGuard interface {
	// CheckJoinResult returns the cached result for the key, or nil when the
	// request has not been seen inside the window
	CheckJoinResult(ctx context.Context, key JoinKey) (*JoinResult, error)

	// CacheJoinResult stores the result for the key with the given TTL
	CacheJoinResult(ctx context.Context, key JoinKey, result *JoinResult, ttl time.Duration) error

	// IsPaymentProcessed reports whether the order's payment callback has
	// already been handled inside the dedupe window
	IsPaymentProcessed(ctx context.Context, orderSN string) (bool, error)

	// MarkPaymentProcessed records the order's payment callback as handled
	MarkPaymentProcessed(ctx context.Context, orderSN string, ttl time.Duration) error

	// WithLock runs fn under an advisory mutual-exclusion marker for the
	// instance id. Acquisition is immediate-fail: a held lock returns
	// LOCK_CONTENTION without waiting. The marker carries a per-call token
	// and is released only while it still holds that token, so an expired
	// lock re-acquired by another caller is never deleted.
	WithLock(ctx context.Context, instanceID uuid.UUID, ttl time.Duration, fn func() error) error
}

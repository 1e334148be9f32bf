package marketing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InstanceRepository persists activity instances. Instances are created and
// updated by the engine, never deleted.
type InstanceRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ActivityInstance, error)
	FindByOrderSN(ctx context.Context, tenantID uuid.UUID, orderSN string) (*ActivityInstance, error)
	// FindByGroupID returns the leader and every participant of a group
	FindByGroupID(ctx context.Context, tenantID, groupID uuid.UUID) ([]ActivityInstance, error)
	// FindPendingBefore returns PENDING_PAY instances created before the
	// cutoff, for the timeout sweep
	FindPendingBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]ActivityInstance, error)
	// CountJoinedByMember counts a member's non-terminal-failed instances
	// under one config, for per-member purchase limits
	CountJoinedByMember(ctx context.Context, tenantID, configID, memberID uuid.UUID) (int64, error)
	Save(ctx context.Context, inst *ActivityInstance) error
}

// ConfigRepository reads activity configurations. Configs are authored
// elsewhere; this engine treats them as read-mostly.
type ConfigRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ActivityConfig, error)
	Save(ctx context.Context, cfg *ActivityConfig) error
}

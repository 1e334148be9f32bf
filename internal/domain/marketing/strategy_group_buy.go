package marketing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultInstanceLockTTL bounds how long a crashed holder can keep the
// advisory per-instance lock
const DefaultInstanceLockTTL = 5 * time.Second

// GroupBuyStrategy implements the multi-party group-buy activity type.
// A group is a two-level tree: one leader instance and zero or more
// participant instances whose GroupID references the leader's id. The
// leader's progress bag carries the group headcount.
type GroupBuyStrategy struct {
	instances InstanceRepository
	configs   ConfigRepository
	guard     IdempotencyGuard
	inventory *InventoryEngine
	engine    TransitionPort
	logger    *zap.Logger
	lockTTL   time.Duration
}

// NewGroupBuyStrategy creates a new group-buy strategy. The engine port is
// bound later via BindEngine, after the instance engine exists.
func NewGroupBuyStrategy(instances InstanceRepository, configs ConfigRepository, guard IdempotencyGuard, inventory *InventoryEngine, logger *zap.Logger) *GroupBuyStrategy {
	return &GroupBuyStrategy{
		instances: instances,
		configs:   configs,
		guard:     guard,
		inventory: inventory,
		logger:    logger,
		lockTTL:   DefaultInstanceLockTTL,
	}
}

// BindEngine hands the strategy its transition port
func (s *GroupBuyStrategy) BindEngine(port TransitionPort) {
	s.engine = port
}

// SetLockTTL overrides the advisory lock TTL used for the leader-counter
// update. Non-positive values keep the default.
func (s *GroupBuyStrategy) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// TemplateCode returns the activity-type code this strategy serves
func (s *GroupBuyStrategy) TemplateCode() TemplateCode {
	return TemplateGroupBuy
}

// ValidateJoin checks the activity window and, for participants, that the
// target group exists, is still open, and has capacity left
func (s *GroupBuyStrategy) ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error {
	rules, err := GroupBuyRulesFrom(cfg)
	if err != nil {
		return err
	}
	if !cfg.IsOpenAt(time.Now()) {
		return NewAdmissionDeniedError("Activity is not open for joining")
	}

	if params.GroupID == nil {
		return nil // opening a new group
	}

	members, err := s.instances.FindByGroupID(ctx, cfg.TenantID, *params.GroupID)
	if err != nil {
		return err
	}
	var leader *ActivityInstance
	for idx := range members {
		if members[idx].MemberID == memberID {
			return NewAdmissionDeniedError("Member already joined this group")
		}
		if members[idx].IsLeader() {
			leader = &members[idx]
		}
	}
	if leader == nil {
		return NewAdmissionDeniedError("Group does not exist")
	}
	if leader.Status.IsTerminal() || leader.Status == StatusFailed {
		return NewAdmissionDeniedError("Group is already closed")
	}

	capacity := rules.MaxCount
	if capacity == 0 {
		capacity = rules.MinCount
	}
	if leader.Data.Int64(DataKeyCurrentCount) >= capacity {
		return NewAdmissionDeniedError("Group is full")
	}
	return nil
}

// ValidateConfig checks the rule bag at authoring time
func (s *GroupBuyStrategy) ValidateConfig(cfg *ActivityConfig) error {
	rules, err := GroupBuyRulesFrom(cfg)
	if err != nil {
		return err
	}
	return rules.Validate()
}

// CalculatePrice returns the leader discount price when opening a group,
// otherwise the regular group price. Group buys are always quantity one.
func (s *GroupBuyStrategy) CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error) {
	rules, err := GroupBuyRulesFrom(cfg)
	if err != nil {
		return decimal.Zero, err
	}
	if params.GroupID == nil && rules.LeaderPrice != nil {
		return *rules.LeaderPrice, nil
	}
	return rules.Price, nil
}

// BuildInstanceData produces the initial progress bag. A new leader counts
// itself into the group immediately; its own later payment only evaluates
// the counter.
func (s *GroupBuyStrategy) BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error) {
	rules, err := GroupBuyRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	if params.GroupID == nil {
		return InstanceData{
			DataKeyIsLeader:     true,
			DataKeyCurrentCount: int64(1),
			DataKeyTargetCount:  rules.MinCount,
			DataKeyQuantity:     int64(1),
		}, nil
	}
	return InstanceData{
		DataKeyIsLeader: false,
		DataKeyQuantity: int64(1),
	}, nil
}

// GetDisplayData projects the storefront view of a group-buy config
func (s *GroupBuyStrategy) GetDisplayData(cfg *ActivityConfig) (map[string]interface{}, error) {
	rules, err := GroupBuyRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"price":    rules.Price.String(),
		"minCount": rules.MinCount,
	}
	if rules.LeaderPrice != nil {
		data["leaderPrice"] = rules.LeaderPrice.String()
	}
	return data, nil
}

// OnPaymentSuccess advances the group headcount and either finalizes the
// group or parks the paying instance in ACTIVE to await more participants.
// The leader-counter read-modify-write runs under the advisory per-instance
// lock of the leader, so concurrent payment confirmations for the same
// group cannot lose increments.
func (s *GroupBuyStrategy) OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error {
	if s.engine == nil {
		return errors.New("group buy strategy has no engine bound")
	}

	leaderID := inst.ID
	if !inst.IsLeader() {
		if inst.GroupID == nil {
			return fmt.Errorf("participant %s has no group reference", inst.ID)
		}
		leaderID = *inst.GroupID
	}

	var current, target int64
	if inst.IsLeader() {
		// The leader counted itself at creation; its payment only evaluates
		current = inst.Data.Int64(DataKeyCurrentCount)
		target = inst.Data.Int64(DataKeyTargetCount)
	} else {
		err := s.guard.WithLock(ctx, leaderID, s.lockTTL, func() error {
			leader, err := s.instances.FindByIDForTenant(ctx, inst.TenantID, leaderID)
			if err != nil {
				return err
			}
			current = leader.Data.Int64(DataKeyCurrentCount) + 1
			target = leader.Data.Int64(DataKeyTargetCount)
			leader.Data[DataKeyCurrentCount] = current
			leader.UpdatedAt = time.Now()
			return s.instances.Save(ctx, leader)
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("group buy payment recorded",
		zap.String("instance_id", inst.ID.String()),
		zap.String("group_id", leaderID.String()),
		zap.Int64("current_count", current),
		zap.Int64("target_count", target),
	)

	if current >= target {
		return s.finalizeGroup(ctx, inst.TenantID, leaderID)
	}

	// Awaiting more participants
	_, err := s.engine.TransitStatus(ctx, inst.TenantID, inst.ID, StatusActive, nil)
	return err
}

// finalizeGroup transitions every group instance currently in PAID or
// ACTIVE to SUCCESS. Finalization is not one atomic unit across instances;
// a crash mid-batch is repaired by the external reconciliation sweep.
func (s *GroupBuyStrategy) finalizeGroup(ctx context.Context, tenantID, groupID uuid.UUID) error {
	members, err := s.instances.FindByGroupID(ctx, tenantID, groupID)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for idx := range members {
		switch members[idx].Status {
		case StatusPaid, StatusActive:
			ids = append(ids, members[idx].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	s.logger.Info("finalizing group",
		zap.String("group_id", groupID.String()),
		zap.Int("instances", len(ids)),
	)
	return s.engine.BatchTransitStatus(ctx, tenantID, ids, StatusSuccess, nil)
}

// OnStatusChange releases reserved inventory when an instance ends in a
// terminal failure under STRONG_LOCK. The quantity goes back exactly once:
// refunding an already FAILED instance must not release again.
func (s *GroupBuyStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	if !to.ReleasesReservation() || from.ReleasesReservation() {
		return nil
	}
	return s.releaseReservation(ctx, inst)
}

// releaseReservation returns the instance's reserved quantity to the pool
func (s *GroupBuyStrategy) releaseReservation(ctx context.Context, inst *ActivityInstance) error {
	cfg, err := s.configs.FindByIDForTenant(ctx, inst.TenantID, inst.ConfigID)
	if err != nil {
		return err
	}
	if cfg.EffectiveStockMode() != StockModeStrongLock {
		return nil
	}
	qty := inst.Data.Int64(DataKeyQuantity)
	if qty <= 0 {
		qty = 1
	}
	return s.inventory.Release(ctx, inst.ConfigID, qty)
}

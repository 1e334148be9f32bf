package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInstanceRepository implements InstanceRepository using GORM
type GormInstanceRepository struct {
	db *gorm.DB
}

// NewGormInstanceRepository creates a new GormInstanceRepository
func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

// FindByIDForTenant finds an instance by ID within a tenant
func (r *GormInstanceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.ActivityInstance, error) {
	var inst marketing.ActivityInstance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindByOrderSN finds the instance bound to an order number within a tenant
func (r *GormInstanceRepository) FindByOrderSN(ctx context.Context, tenantID uuid.UUID, orderSN string) (*marketing.ActivityInstance, error) {
	var inst marketing.ActivityInstance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_sn = ?", tenantID, orderSN).
		First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindByGroupID returns the leader and every participant of a group, oldest
// first so the leader is stable at the head
func (r *GormInstanceRepository) FindByGroupID(ctx context.Context, tenantID, groupID uuid.UUID) ([]marketing.ActivityInstance, error) {
	var insts []marketing.ActivityInstance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND group_id = ?", tenantID, groupID).
		Order("created_at ASC").
		Find(&insts).Error; err != nil {
		return nil, err
	}
	return insts, nil
}

// FindPendingBefore returns PENDING_PAY instances created before the cutoff
func (r *GormInstanceRepository) FindPendingBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]marketing.ActivityInstance, error) {
	if limit <= 0 {
		limit = 100
	}
	var insts []marketing.ActivityInstance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND created_at < ?",
			tenantID, marketing.StatusPendingPay, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&insts).Error; err != nil {
		return nil, err
	}
	return insts, nil
}

// CountJoinedByMember counts a member's instances under one config that
// still occupy a participation slot. TIMEOUT and REFUNDED instances have
// given their slot back and are excluded.
func (r *GormInstanceRepository) CountJoinedByMember(ctx context.Context, tenantID, configID, memberID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&marketing.ActivityInstance{}).
		Where("tenant_id = ? AND config_id = ? AND member_id = ? AND status NOT IN ?",
			tenantID, configID, memberID,
			[]marketing.InstanceStatus{marketing.StatusTimeout, marketing.StatusRefunded}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TenantsWithPendingPayments returns the distinct tenants that currently
// have PENDING_PAY instances, for the expiry sweep
func (r *GormInstanceRepository) TenantsWithPendingPayments(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&marketing.ActivityInstance{}).
		Where("status = ?", marketing.StatusPendingPay).
		Distinct("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// Save persists an instance (insert or update)
func (r *GormInstanceRepository) Save(ctx context.Context, inst *marketing.ActivityInstance) error {
	return r.db.WithContext(ctx).Save(inst).Error
}

// Ensure GormInstanceRepository implements InstanceRepository
var _ marketing.InstanceRepository = (*GormInstanceRepository)(nil)

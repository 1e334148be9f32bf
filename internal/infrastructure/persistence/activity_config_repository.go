package persistence

import (
	"context"
	"errors"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConfigRepository implements ConfigRepository using GORM
type GormConfigRepository struct {
	db *gorm.DB
}

// NewGormConfigRepository creates a new GormConfigRepository
func NewGormConfigRepository(db *gorm.DB) *GormConfigRepository {
	return &GormConfigRepository{db: db}
}

// FindByIDForTenant finds an activity config by ID within a tenant
func (r *GormConfigRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.ActivityConfig, error) {
	var cfg marketing.ActivityConfig
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// Save persists an activity config (insert or update)
func (r *GormConfigRepository) Save(ctx context.Context, cfg *marketing.ActivityConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

// Ensure GormConfigRepository implements ConfigRepository
var _ marketing.ConfigRepository = (*GormConfigRepository)(nil)

// Package fulfillment applies settlement effects to member accounts.
package fulfillment

import (
	"context"
	"errors"
	"time"

	appmarketing "github.com/mall/backend/internal/application/marketing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberAsset is one redeemable asset issued to a member
type MemberAsset struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_member_assets"`
	MemberID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_member_assets"`
	AssetType      string          `gorm:"type:varchar(64);not null"`
	Balance        decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for MemberAsset
func (MemberAsset) TableName() string {
	return "member_assets"
}

// MemberLevel is a member's current level within a tenant
type MemberLevel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	MemberID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Level     string    `gorm:"type:varchar(32);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for MemberLevel
func (MemberLevel) TableName() string {
	return "member_levels"
}

// GormFulfillment implements the member outbound port on asset and level
// tables. Asset grants are deduplicated on the idempotency key; level
// upgrades are naturally idempotent upserts.
type GormFulfillment struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormFulfillment creates a new GormFulfillment
func NewGormFulfillment(db *gorm.DB, logger *zap.Logger) *GormFulfillment {
	return &GormFulfillment{db: db, logger: logger}
}

// AutoMigrate creates or updates the fulfillment tables
func (f *GormFulfillment) AutoMigrate() error {
	return f.db.AutoMigrate(&MemberAsset{}, &MemberLevel{})
}

// IssueAsset grants one asset to a member. A duplicate idempotency key
// leaves the existing grant untouched.
func (f *GormFulfillment) IssueAsset(ctx context.Context, idempotencyKey string, tenantID, memberID uuid.UUID, grant appmarketing.AssetGrant) error {
	asset := MemberAsset{
		ID:             uuid.New(),
		TenantID:       tenantID,
		MemberID:       memberID,
		AssetType:      grant.AssetType,
		Balance:        grant.Balance,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}

	result := f.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&asset)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		f.logger.Info("asset grant already issued",
			zap.String("idempotency_key", idempotencyKey),
			zap.String("member_id", memberID.String()),
		)
		return nil
	}

	f.logger.Info("asset issued to member",
		zap.String("member_id", memberID.String()),
		zap.String("asset_type", grant.AssetType),
		zap.String("balance", grant.Balance.String()),
	)
	return nil
}

// UpgradeMember moves a member to the target level
func (f *GormFulfillment) UpgradeMember(ctx context.Context, _ string, tenantID, memberID uuid.UUID, targetLevel string) error {
	level := MemberLevel{
		TenantID:  tenantID,
		MemberID:  memberID,
		Level:     targetLevel,
		UpdatedAt: time.Now(),
	}

	if err := f.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"level", "updated_at"}),
		}).
		Create(&level).Error; err != nil {
		return err
	}

	f.logger.Info("member level upgraded",
		zap.String("member_id", memberID.String()),
		zap.String("level", targetLevel),
	)
	return nil
}

// GetLevel reads a member's current level, empty string when unset
func (f *GormFulfillment) GetLevel(ctx context.Context, tenantID, memberID uuid.UUID) (string, error) {
	var level MemberLevel
	err := f.db.WithContext(ctx).
		Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
		First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return level.Level, nil
}

// interface guards
var (
	_ appmarketing.FulfillmentService = (*GormFulfillment)(nil)
)

// Package ledger records settlement credits against store accounts.
package ledger

import (
	"context"
	"time"

	appmarketing "github.com/mall/backend/internal/application/marketing"
	"github.com/mall/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerEntry is one credit applied to a store's balance
type LedgerEntry struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_ledger_store"`
	StoreID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_ledger_store"`
	Amount         valueobject.Money `gorm:"type:decimal(20,8);not null"`
	Currency       string            `gorm:"type:varchar(8);not null"`
	IdempotencyKey string            `gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt      time.Time         `gorm:"not null"`
}

// TableName returns the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "store_ledger_entries"
}

// GormLedger implements the finance outbound port on a ledger table. The
// unique idempotency key makes a retried settlement credit a no-op.
type GormLedger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormLedger creates a new GormLedger
func NewGormLedger(db *gorm.DB, logger *zap.Logger) *GormLedger {
	return &GormLedger{db: db, logger: logger}
}

// AutoMigrate creates or updates the ledger table
func (l *GormLedger) AutoMigrate() error {
	return l.db.AutoMigrate(&LedgerEntry{})
}

// Credit appends one entry to the store's ledger. A duplicate idempotency
// key leaves the existing entry untouched.
func (l *GormLedger) Credit(ctx context.Context, idempotencyKey string, tenantID, storeID uuid.UUID, amount valueobject.Money) error {
	entry := LedgerEntry{
		ID:             uuid.New(),
		TenantID:       tenantID,
		StoreID:        storeID,
		Amount:         amount,
		Currency:       string(amount.Currency()),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}

	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		l.logger.Info("ledger credit already applied",
			zap.String("idempotency_key", idempotencyKey),
			zap.String("store_id", storeID.String()),
		)
		return nil
	}

	l.logger.Info("store credited",
		zap.String("store_id", storeID.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Balance sums the credits recorded for one store
func (l *GormLedger) Balance(ctx context.Context, tenantID, storeID uuid.UUID) (valueobject.Money, error) {
	var total *string
	if err := l.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("tenant_id = ? AND store_id = ?", tenantID, storeID).
		Select("SUM(amount)").
		Scan(&total).Error; err != nil {
		return valueobject.Zero(), err
	}
	if total == nil {
		return valueobject.Zero(), nil
	}
	return valueobject.NewMoneyCNYFromString(*total)
}

// interface guard
var _ appmarketing.LedgerService = (*GormLedger)(nil)

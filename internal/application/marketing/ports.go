package marketing

import (
	"context"

	"github.com/mall/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetGrant describes a redeemable asset issued to a member at settlement
type AssetGrant struct {
	AssetType string
	Balance   decimal.Decimal
}

// LedgerService is the outbound port to the finance context. Every call
// carries the settlement idempotency key so retried settlements credit the
// store exactly once.
type LedgerService interface {
	Credit(ctx context.Context, idempotencyKey string, tenantID, storeID uuid.UUID, amount valueobject.Money) error
}

// FulfillmentService is the outbound port to the member context for
// settlement effects on the member's account
type FulfillmentService interface {
	IssueAsset(ctx context.Context, idempotencyKey string, tenantID, memberID uuid.UUID, grant AssetGrant) error
	UpgradeMember(ctx context.Context, idempotencyKey string, tenantID, memberID uuid.UUID, targetLevel string) error
}

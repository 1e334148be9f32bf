package marketing

import (
	"fmt"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// NewSoldOutError builds the error returned when STRONG_LOCK reservation
// finds insufficient remaining stock
func NewSoldOutError(configID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(
		"SOLD_OUT",
		fmt.Sprintf("Activity %s is sold out", configID),
	)
}

// NewSettlementFailureError wraps a collaborator failure that occurred while
// settling an instance that already committed its SUCCESS status. Settlement
// is idempotent, so the caller may retry the transition.
func NewSettlementFailureError(instanceID uuid.UUID, cause error) *shared.DomainError {
	return shared.NewDomainError(
		"SETTLEMENT_FAILURE",
		fmt.Sprintf("Settlement for instance %s failed: %v", instanceID, cause),
	)
}

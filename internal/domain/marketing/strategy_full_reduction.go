package marketing

import (
	"context"
	"time"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FullReductionStrategy implements order-level full-reduction promotions.
// The template creates no instances; the strategy only answers pricing
// quotes against the order amount.
type FullReductionStrategy struct{}

// NewFullReductionStrategy creates a new full-reduction strategy
func NewFullReductionStrategy() *FullReductionStrategy {
	return &FullReductionStrategy{}
}

// TemplateCode returns the activity-type code this strategy serves
func (s *FullReductionStrategy) TemplateCode() TemplateCode {
	return TemplateFullReduction
}

// ValidateJoin only checks the activity window; full reduction has no
// per-member admission rules
func (s *FullReductionStrategy) ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error {
	if _, err := FullReductionRulesFrom(cfg); err != nil {
		return err
	}
	if !cfg.IsOpenAt(time.Now()) {
		return NewAdmissionDeniedError("Promotion is not open")
	}
	return nil
}

// ValidateConfig checks the rule bag at authoring time
func (s *FullReductionStrategy) ValidateConfig(cfg *ActivityConfig) error {
	rules, err := FullReductionRulesFrom(cfg)
	if err != nil {
		return err
	}
	return rules.Validate()
}

// CalculatePrice applies the reduction when the order amount meets the
// threshold, otherwise returns the amount unchanged
func (s *FullReductionStrategy) CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error) {
	rules, err := FullReductionRulesFrom(cfg)
	if err != nil {
		return decimal.Zero, err
	}
	if params.OrderAmount.GreaterThanOrEqual(rules.Threshold) {
		return params.OrderAmount.Sub(rules.Reduction), nil
	}
	return params.OrderAmount, nil
}

// BuildInstanceData always fails: full reduction never creates instances
func (s *FullReductionStrategy) BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error) {
	return nil, shared.NewDomainError("INVALID_STATE", "Full reduction does not create instances")
}

// GetDisplayData projects the storefront view of a full-reduction config
func (s *FullReductionStrategy) GetDisplayData(cfg *ActivityConfig) (map[string]interface{}, error) {
	rules, err := FullReductionRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"threshold": rules.Threshold.String(),
		"reduction": rules.Reduction.String(),
	}, nil
}

// OnPaymentSuccess is a no-op; there is no instance to advance
func (s *FullReductionStrategy) OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error {
	return nil
}

// OnStatusChange is a no-op; there is no instance lifecycle
func (s *FullReductionStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	return nil
}

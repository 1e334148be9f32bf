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

// FlashSaleStrategy implements single-party time-boxed sales. Instances
// carry no intermediate state: payment completes the purchase directly.
type FlashSaleStrategy struct {
	instances InstanceRepository
	configs   ConfigRepository
	inventory *InventoryEngine
	engine    TransitionPort
	logger    *zap.Logger
}

// NewFlashSaleStrategy creates a new flash-sale strategy
func NewFlashSaleStrategy(instances InstanceRepository, configs ConfigRepository, inventory *InventoryEngine, logger *zap.Logger) *FlashSaleStrategy {
	return &FlashSaleStrategy{
		instances: instances,
		configs:   configs,
		inventory: inventory,
		logger:    logger,
	}
}

// BindEngine hands the strategy its transition port
func (s *FlashSaleStrategy) BindEngine(port TransitionPort) {
	s.engine = port
}

// TemplateCode returns the activity-type code this strategy serves
func (s *FlashSaleStrategy) TemplateCode() TemplateCode {
	return TemplateFlashSale
}

// resolveSKU picks the SKU addressed by the join. A single-SKU sale accepts
// an omitted sku id.
func (s *FlashSaleStrategy) resolveSKU(rules *FlashSaleRules, params JoinParams) (*FlashSaleSKU, error) {
	if params.SKUID == "" {
		if len(rules.SKUs) == 1 {
			return &rules.SKUs[0], nil
		}
		return nil, NewAdmissionDeniedError("SKU must be specified for this flash sale")
	}
	sku := rules.FindSKU(params.SKUID)
	if sku == nil {
		return nil, NewAdmissionDeniedError(fmt.Sprintf("SKU %s is not part of this flash sale", params.SKUID))
	}
	return sku, nil
}

// ValidateJoin checks the sale window, SKU membership and the per-member
// purchase limit
func (s *FlashSaleStrategy) ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error {
	rules, err := FlashSaleRulesFrom(cfg)
	if err != nil {
		return err
	}
	if !cfg.IsOpenAt(time.Now()) {
		return NewAdmissionDeniedError("Flash sale is not open")
	}
	if _, err := s.resolveSKU(rules, params); err != nil {
		return err
	}

	if rules.LimitPerMember > 0 {
		joined, err := s.instances.CountJoinedByMember(ctx, cfg.TenantID, cfg.ID, memberID)
		if err != nil {
			return err
		}
		if joined+params.EffectiveQuantity() > rules.LimitPerMember {
			return NewAdmissionDeniedError(
				fmt.Sprintf("Purchase limit of %d per member exceeded", rules.LimitPerMember),
			)
		}
	}
	return nil
}

// ValidateConfig checks the rule bag at authoring time
func (s *FlashSaleStrategy) ValidateConfig(cfg *ActivityConfig) error {
	rules, err := FlashSaleRulesFrom(cfg)
	if err != nil {
		return err
	}
	return rules.Validate()
}

// CalculatePrice multiplies the SKU sale price by the requested quantity
func (s *FlashSaleStrategy) CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error) {
	rules, err := FlashSaleRulesFrom(cfg)
	if err != nil {
		return decimal.Zero, err
	}
	sku, err := s.resolveSKU(rules, params)
	if err != nil {
		return decimal.Zero, err
	}
	return sku.Price.Mul(decimal.NewFromInt(params.EffectiveQuantity())), nil
}

// BuildInstanceData records the purchased SKU and quantity
func (s *FlashSaleStrategy) BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error) {
	rules, err := FlashSaleRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	sku, err := s.resolveSKU(rules, params)
	if err != nil {
		return nil, err
	}
	return InstanceData{
		DataKeySKUID:    sku.SKUID,
		DataKeyQuantity: params.EffectiveQuantity(),
	}, nil
}

// GetDisplayData projects the storefront view of a flash-sale config
func (s *FlashSaleStrategy) GetDisplayData(cfg *ActivityConfig) (map[string]interface{}, error) {
	rules, err := FlashSaleRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	skus := make([]map[string]interface{}, 0, len(rules.SKUs))
	for _, sku := range rules.SKUs {
		skus = append(skus, map[string]interface{}{
			"skuId": sku.SKUID,
			"price": sku.Price.String(),
		})
	}
	return map[string]interface{}{
		"skus":           skus,
		"limitPerMember": rules.LimitPerMember,
	}, nil
}

// OnPaymentSuccess completes the purchase. Flash sales have no waiting
// phase, so PAID moves straight to SUCCESS.
func (s *FlashSaleStrategy) OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error {
	if s.engine == nil {
		return errors.New("flash sale strategy has no engine bound")
	}
	_, err := s.engine.TransitStatus(ctx, inst.TenantID, inst.ID, StatusSuccess, nil)
	return err
}

// OnStatusChange returns the reserved quantity on the first terminal
// failure; a refund following FAILED already gave the quantity back
func (s *FlashSaleStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	if !to.ReleasesReservation() || from.ReleasesReservation() {
		return nil
	}

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

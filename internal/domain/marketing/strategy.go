package marketing

import (
	"context"
	"fmt"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JoinParams carries the member-supplied inputs of a join request. Which
// fields are meaningful depends on the activity type.
type JoinParams struct {
	// GroupID joins an existing group instead of opening a new one
	GroupID *uuid.UUID
	// SKUID selects a SKU within multi-SKU activities (flash sale)
	SKUID string
	// Quantity defaults to 1 when zero
	Quantity int64
	// OrderAmount is the cart amount evaluated by order-level promotions
	// (full reduction)
	OrderAmount decimal.Decimal
}

// EffectiveQuantity returns the requested quantity, defaulting to 1
func (p JoinParams) EffectiveQuantity() int64 {
	if p.Quantity <= 0 {
		return 1
	}
	return p.Quantity
}

// NewAdmissionDeniedError builds the error surfaced when a member fails an
// admission check; nothing is persisted once it is returned
func NewAdmissionDeniedError(reason string) *shared.DomainError {
	return shared.NewDomainError("ADMISSION_DENIED", reason)
}

// Strategy is the activity-type contract dispatched by the instance engine.
// Implementations own the schema of their rule and progress bags; the
// engine never interprets either.
type Strategy interface {
	// TemplateCode returns the activity-type code this strategy serves
	TemplateCode() TemplateCode

	// ValidateJoin performs the admission check (eligibility, deadlines,
	// capacity). An ADMISSION_DENIED error aborts before any persistence.
	ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error

	// CalculatePrice computes the payable amount for the join. Pure.
	CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error)

	// BuildInstanceData produces the initial progress bag for a new instance
	BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error)

	// OnPaymentSuccess is invoked once payment is confirmed, after the
	// instance has transitioned to PAID. It advances activity-type progress
	// and may drive further transitions through the engine port.
	OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error

	// OnStatusChange is invoked after every committed transition for
	// activity-type side effects (inventory release on terminal failure,
	// downstream scheduling on success, ...)
	OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error
}

// ConfigValidator is implemented by strategies that validate rule bags at
// authoring time
type ConfigValidator interface {
	ValidateConfig(cfg *ActivityConfig) error
}

// DisplayDataProvider is implemented by strategies that expose a read-model
// projection for storefront surfaces
type DisplayDataProvider interface {
	GetDisplayData(cfg *ActivityConfig) (map[string]interface{}, error)
}

// TransitionPort is the narrow engine surface handed to strategies so they
// can trigger further transitions. Strategies receive it after both sides
// are constructed; neither package depends on the other's concrete type.
type TransitionPort interface {
	TransitStatus(ctx context.Context, tenantID, instanceID uuid.UUID, next InstanceStatus, extra InstanceData) (*ActivityInstance, error)
	BatchTransitStatus(ctx context.Context, tenantID uuid.UUID, instanceIDs []uuid.UUID, next InstanceStatus, extra InstanceData) error
}

// EngineAware is implemented by strategies that need the transition port
type EngineAware interface {
	BindEngine(port TransitionPort)
}

// Factory resolves template codes to strategy implementations registered at
// process start. Lookups are O(1) and side-effect-free.
type Factory struct {
	strategies map[TemplateCode]Strategy
}

// NewFactory creates an empty strategy factory, failing fast when the
// template registry itself is inconsistent
func NewFactory() (*Factory, error) {
	if err := ValidateRegistry(); err != nil {
		return nil, fmt.Errorf("template registry is inconsistent: %w", err)
	}
	return &Factory{
		strategies: make(map[TemplateCode]Strategy),
	}, nil
}

// Register adds a strategy. The code must exist in the template registry
// and must not already be registered.
func (f *Factory) Register(s Strategy) error {
	code := s.TemplateCode()
	if _, err := MetadataFor(code); err != nil {
		return err
	}
	if _, exists := f.strategies[code]; exists {
		return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Strategy for %s already registered", code))
	}
	f.strategies[code] = s
	return nil
}

// GetStrategy resolves a template code to its strategy
func (f *Factory) GetStrategy(code TemplateCode) (Strategy, error) {
	s, ok := f.strategies[code]
	if !ok {
		return nil, shared.NewDomainError(
			"NOT_FOUND",
			fmt.Sprintf("No strategy registered for template code %s", code),
		)
	}
	return s, nil
}

// GetMetadata returns the registry record for a template code
func (f *Factory) GetMetadata(code TemplateCode) (TemplateMetadata, error) {
	return MetadataFor(code)
}

// ListMetadata returns metadata for every registered template
func (f *Factory) ListMetadata() []TemplateMetadata {
	return AllTemplates()
}

// HasInstance reports whether the template creates participation instances
func (f *Factory) HasInstance(code TemplateCode) (bool, error) {
	meta, err := MetadataFor(code)
	if err != nil {
		return false, err
	}
	return meta.HasInstance, nil
}

// HasState reports whether instances progress through intermediate states
func (f *Factory) HasState(code TemplateCode) (bool, error) {
	meta, err := MetadataFor(code)
	if err != nil {
		return false, err
	}
	return meta.HasState, nil
}

// CanFail reports whether instances can end in FAILED
func (f *Factory) CanFail(code TemplateCode) (bool, error) {
	meta, err := MetadataFor(code)
	if err != nil {
		return false, err
	}
	return meta.CanFail, nil
}

// CanParallel reports whether one member may hold concurrent instances
func (f *Factory) CanParallel(code TemplateCode) (bool, error) {
	meta, err := MetadataFor(code)
	if err != nil {
		return false, err
	}
	return meta.CanParallel, nil
}

// DefaultStockMode returns the template's default inventory mode
func (f *Factory) DefaultStockMode(code TemplateCode) (StockMode, error) {
	meta, err := MetadataFor(code)
	if err != nil {
		return "", err
	}
	return meta.DefaultStockMode, nil
}

// BindEngine hands the transition port to every registered strategy that
// needs one. Called once, after the engine has been constructed.
func (f *Factory) BindEngine(port TransitionPort) {
	for _, s := range f.strategies {
		if aware, ok := s.(EngineAware); ok {
			aware.BindEngine(port)
		}
	}
}

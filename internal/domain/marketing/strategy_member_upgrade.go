package marketing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MemberUpgradeStrategy implements paid membership upgrades. Instances go
// straight from PAID to SUCCESS; the granted level and any gift asset are
// applied at settlement.
type MemberUpgradeStrategy struct {
	instances InstanceRepository
	engine    TransitionPort
	logger    *zap.Logger
}

// NewMemberUpgradeStrategy creates a new member-upgrade strategy
func NewMemberUpgradeStrategy(instances InstanceRepository, logger *zap.Logger) *MemberUpgradeStrategy {
	return &MemberUpgradeStrategy{
		instances: instances,
		logger:    logger,
	}
}

// BindEngine hands the strategy its transition port
func (s *MemberUpgradeStrategy) BindEngine(port TransitionPort) {
	s.engine = port
}

// TemplateCode returns the activity-type code this strategy serves
func (s *MemberUpgradeStrategy) TemplateCode() TemplateCode {
	return TemplateMemberUpgrade
}

// ValidateJoin checks the window and rejects a second concurrent upgrade
// purchase by the same member under the same config
func (s *MemberUpgradeStrategy) ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error {
	if _, err := MemberUpgradeRulesFrom(cfg); err != nil {
		return err
	}
	if !cfg.IsOpenAt(time.Now()) {
		return NewAdmissionDeniedError("Upgrade offer is not open")
	}
	joined, err := s.instances.CountJoinedByMember(ctx, cfg.TenantID, cfg.ID, memberID)
	if err != nil {
		return err
	}
	if joined > 0 {
		return NewAdmissionDeniedError("Member already purchased this upgrade")
	}
	return nil
}

// ValidateConfig checks the rule bag at authoring time
func (s *MemberUpgradeStrategy) ValidateConfig(cfg *ActivityConfig) error {
	rules, err := MemberUpgradeRulesFrom(cfg)
	if err != nil {
		return err
	}
	return rules.Validate()
}

// CalculatePrice returns the fixed upgrade price
func (s *MemberUpgradeStrategy) CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error) {
	rules, err := MemberUpgradeRulesFrom(cfg)
	if err != nil {
		return decimal.Zero, err
	}
	return rules.Price, nil
}

// BuildInstanceData records the level the member is purchasing
func (s *MemberUpgradeStrategy) BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error) {
	rules, err := MemberUpgradeRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	return InstanceData{
		DataKeyTargetLevel: rules.TargetLevel,
		DataKeyQuantity:    int64(1),
	}, nil
}

// GetDisplayData projects the storefront view of an upgrade config
func (s *MemberUpgradeStrategy) GetDisplayData(cfg *ActivityConfig) (map[string]interface{}, error) {
	rules, err := MemberUpgradeRulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"targetLevel": rules.TargetLevel,
		"price":       rules.Price.String(),
	}, nil
}

// OnPaymentSuccess completes the upgrade immediately
func (s *MemberUpgradeStrategy) OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error {
	if s.engine == nil {
		return errors.New("member upgrade strategy has no engine bound")
	}
	level, _ := inst.Data[DataKeyTargetLevel].(string)
	s.logger.Info("member upgrade paid",
		zap.String("instance_id", inst.ID.String()),
		zap.String("member_id", inst.MemberID.String()),
		zap.String("target_level", level),
	)
	_, err := s.engine.TransitStatus(ctx, inst.TenantID, inst.ID, StatusSuccess, nil)
	return err
}

// OnStatusChange is a no-op; upgrades use LAZY_CHECK and reserve nothing
func (s *MemberUpgradeStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	return nil
}

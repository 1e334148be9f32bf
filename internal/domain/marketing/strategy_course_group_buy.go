package marketing

import (
	"context"

	"github.com/mall/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CourseGroupBuyStrategy specializes the group buy for course products. The
// group mechanics are inherited unchanged; the difference is the richer rule
// bag and the schedule request published when an instance completes.
type CourseGroupBuyStrategy struct {
	*GroupBuyStrategy
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewCourseGroupBuyStrategy creates a new course group-buy strategy
func NewCourseGroupBuyStrategy(instances InstanceRepository, configs ConfigRepository, guard IdempotencyGuard, inventory *InventoryEngine, publisher shared.EventPublisher, logger *zap.Logger) *CourseGroupBuyStrategy {
	return &CourseGroupBuyStrategy{
		GroupBuyStrategy: NewGroupBuyStrategy(instances, configs, guard, inventory, logger),
		publisher:        publisher,
		logger:           logger,
	}
}

// TemplateCode returns the activity-type code this strategy serves
func (s *CourseGroupBuyStrategy) TemplateCode() TemplateCode {
	return TemplateCourseGroupBuy
}

// ValidateConfig checks the course rule bag, including the course binding
// the plain group buy does not carry
func (s *CourseGroupBuyStrategy) ValidateConfig(cfg *ActivityConfig) error {
	rules, err := CourseGroupBuyRulesFrom(cfg)
	if err != nil {
		return err
	}
	return rules.Validate()
}

// OnStatusChange runs the inherited inventory handling, then asks the course
// context to generate lesson schedules for each completed participation
func (s *CourseGroupBuyStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	if err := s.GroupBuyStrategy.OnStatusChange(ctx, inst, from, to); err != nil {
		return err
	}
	if to != StatusSuccess {
		return nil
	}

	cfg, err := s.configs.FindByIDForTenant(ctx, inst.TenantID, inst.ConfigID)
	if err != nil {
		return err
	}
	rules, err := CourseGroupBuyRulesFrom(cfg)
	if err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	event := NewScheduleRequestedEvent(inst, rules.CourseID)
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Schedule generation is repairable downstream; the completed
		// instance must not be rolled back over it
		s.logger.Error("failed to publish schedule request",
			zap.String("instance_id", inst.ID.String()),
			zap.String("course_id", rules.CourseID),
			zap.Error(err),
		)
	}
	return nil
}

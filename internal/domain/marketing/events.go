package marketing

import (
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the marketing context
const (
	EventTypeInstanceCreated       = "marketing.instance.created"
	EventTypeInstanceStatusChanged = "marketing.instance.status_changed"
	EventTypeGroupCompleted        = "marketing.group.completed"
	EventTypeInstanceSettled       = "marketing.instance.settled"
	EventTypeScheduleRequested     = "marketing.course.schedule_requested"
)

// AggregateTypeInstance is the aggregate type for activity instances
const AggregateTypeInstance = "ActivityInstance"

// InstanceCreatedEvent is raised when a member joins an activity
type InstanceCreatedEvent struct {
	shared.BaseDomainEvent
	ConfigID     uuid.UUID    `json:"config_id"`
	MemberID     uuid.UUID    `json:"member_id"`
	TemplateCode TemplateCode `json:"template_code"`
}

// NewInstanceCreatedEvent creates a new InstanceCreatedEvent
func NewInstanceCreatedEvent(inst *ActivityInstance) *InstanceCreatedEvent {
	return &InstanceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstanceCreated, AggregateTypeInstance, inst.ID, inst.TenantID),
		ConfigID:        inst.ConfigID,
		MemberID:        inst.MemberID,
		TemplateCode:    inst.TemplateCode,
	}
}

// InstanceStatusChangedEvent is raised after every committed transition
type InstanceStatusChangedEvent struct {
	shared.BaseDomainEvent
	ConfigID   uuid.UUID      `json:"config_id"`
	MemberID   uuid.UUID      `json:"member_id"`
	FromStatus InstanceStatus `json:"from_status"`
	ToStatus   InstanceStatus `json:"to_status"`
}

// NewInstanceStatusChangedEvent creates a new InstanceStatusChangedEvent
func NewInstanceStatusChangedEvent(inst *ActivityInstance, from, to InstanceStatus) *InstanceStatusChangedEvent {
	return &InstanceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstanceStatusChanged, AggregateTypeInstance, inst.ID, inst.TenantID),
		ConfigID:        inst.ConfigID,
		MemberID:        inst.MemberID,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// GroupCompletedEvent is raised when a group reaches its target headcount
type GroupCompletedEvent struct {
	shared.BaseDomainEvent
	ConfigID  uuid.UUID   `json:"config_id"`
	GroupID   uuid.UUID   `json:"group_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// NewGroupCompletedEvent creates a new GroupCompletedEvent
func NewGroupCompletedEvent(tenantID, configID, groupID uuid.UUID, memberIDs []uuid.UUID) *GroupCompletedEvent {
	return &GroupCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGroupCompleted, AggregateTypeInstance, groupID, tenantID),
		ConfigID:        configID,
		GroupID:         groupID,
		MemberIDs:       memberIDs,
	}
}

// InstanceSettledEvent is raised once settlement effects have been applied
type InstanceSettledEvent struct {
	shared.BaseDomainEvent
	StoreID    uuid.UUID       `json:"store_id"`
	MemberID   uuid.UUID       `json:"member_id"`
	GrossPrice decimal.Decimal `json:"gross_price"`
	NetAmount  decimal.Decimal `json:"net_amount"`
}

// NewInstanceSettledEvent creates a new InstanceSettledEvent
func NewInstanceSettledEvent(inst *ActivityInstance, storeID uuid.UUID, gross, net decimal.Decimal) *InstanceSettledEvent {
	return &InstanceSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstanceSettled, AggregateTypeInstance, inst.ID, inst.TenantID),
		StoreID:         storeID,
		MemberID:        inst.MemberID,
		GrossPrice:      gross,
		NetAmount:       net,
	}
}

// ScheduleRequestedEvent asks the course context to generate lesson
// schedules for a completed course group buy
type ScheduleRequestedEvent struct {
	shared.BaseDomainEvent
	CourseID string    `json:"course_id"`
	MemberID uuid.UUID `json:"member_id"`
}

// NewScheduleRequestedEvent creates a new ScheduleRequestedEvent
func NewScheduleRequestedEvent(inst *ActivityInstance, courseID string) *ScheduleRequestedEvent {
	return &ScheduleRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleRequested, AggregateTypeInstance, inst.ID, inst.TenantID),
		CourseID:        courseID,
		MemberID:        inst.MemberID,
	}
}

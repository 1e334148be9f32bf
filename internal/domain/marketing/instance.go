package marketing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstanceStatus represents the lifecycle status of an activity instance
type InstanceStatus string

const (
	StatusPendingPay InstanceStatus = "PENDING_PAY"
	StatusPaid       InstanceStatus = "PAID"
	StatusActive     InstanceStatus = "ACTIVE"
	StatusSuccess    InstanceStatus = "SUCCESS"
	StatusFailed     InstanceStatus = "FAILED"
	StatusTimeout    InstanceStatus = "TIMEOUT"
	StatusRefunded   InstanceStatus = "REFUNDED"
)

// IsValid checks if the status is a valid InstanceStatus
func (s InstanceStatus) IsValid() bool {
	switch s {
	case StatusPendingPay, StatusPaid, StatusActive, StatusSuccess,
		StatusFailed, StatusTimeout, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of InstanceStatus
func (s InstanceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses this engine never mutates again
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusTimeout, StatusRefunded:
		return true
	}
	return false
}

// ReleasesReservation returns true for statuses whose entry gives a
// STRONG_LOCK reservation back to the pool
func (s InstanceStatus) ReleasesReservation() bool {
	switch s {
	case StatusTimeout, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s InstanceStatus) CanTransitionTo(target InstanceStatus) bool {
	switch s {
	case StatusPendingPay:
		return target == StatusPaid || target == StatusTimeout
	case StatusPaid:
		return target == StatusActive || target == StatusRefunded || target == StatusSuccess
	case StatusActive:
		return target == StatusSuccess || target == StatusFailed || target == StatusRefunded
	case StatusFailed:
		return target == StatusRefunded
	case StatusSuccess, StatusTimeout, StatusRefunded:
		return false // Terminal states
	}
	return false
}

// NewIllegalTransitionError builds the error for a transition absent from the
// table, naming both the current and the requested status
func NewIllegalTransitionError(current, requested InstanceStatus) *shared.DomainError {
	return shared.NewDomainError(
		"ILLEGAL_TRANSITION",
		fmt.Sprintf("Cannot transition instance from %s to %s", current, requested),
	)
}

// Well-known keys inside the instance progress bag. Strategies own the
// schema of their bag; the engine only reads the generic price/quantity keys.
const (
	DataKeyIsLeader     = "isLeader"
	DataKeyCurrentCount = "currentCount"
	DataKeyTargetCount  = "targetCount"
	DataKeyQuantity     = "quantity"
	DataKeyPrice        = "price"
	DataKeySKUID        = "skuId"
	DataKeyTargetLevel  = "targetLevel"
)

// InstanceData is the activity-type progress bag attached to an instance.
// The engine stores and merges it opaquely; each strategy interprets its own
// keys.
type InstanceData map[string]interface{}

// Value implements driver.Valuer for database storage
func (d InstanceData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal instance data: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (d *InstanceData) Scan(value interface{}) error {
	if value == nil {
		*d = InstanceData{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into InstanceData", value)
	}
	if len(raw) == 0 {
		*d = InstanceData{}
		return nil
	}
	return json.Unmarshal(raw, d)
}

// Clone returns a shallow copy of the bag
func (d InstanceData) Clone() InstanceData {
	out := make(InstanceData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge overlays the given entries onto the bag
func (d InstanceData) Merge(extra InstanceData) {
	for k, v := range extra {
		d[k] = v
	}
}

// Bool reads a boolean key, returning false when absent or mistyped
func (d InstanceData) Bool(key string) bool {
	v, ok := d[key].(bool)
	return ok && v
}

// Int64 reads a numeric key. JSON round-trips store numbers as float64,
// so both representations are accepted.
func (d InstanceData) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Decimal reads a decimal key, returning zero when absent or unparseable
func (d InstanceData) Decimal(key string) decimal.Decimal {
	switch v := d[key].(type) {
	case string:
		if n, err := decimal.NewFromString(v); err == nil {
			return n
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		if n, err := decimal.NewFromString(v.String()); err == nil {
			return n
		}
	}
	return decimal.Zero
}

// ActivityInstance is one member's participation record in one activity.
// It is created in PENDING_PAY and mutated exclusively through TransitTo;
// once a terminal status is reached the record is never changed again.
type ActivityInstance struct {
	shared.TenantAggregateRoot
	ConfigID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	MemberID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	TemplateCode TemplateCode   `gorm:"type:varchar(50);not null;index"`
	OrderSN      string         `gorm:"type:varchar(64);index"`
	GroupID      *uuid.UUID     `gorm:"type:uuid;index"` // leader's instance id; equals own id for leaders
	Data         InstanceData   `gorm:"type:jsonb"`
	Status       InstanceStatus `gorm:"type:varchar(20);not null;index"`
	PayTime      *time.Time
	EndTime      *time.Time
}

// TableName returns the table name for GORM
func (ActivityInstance) TableName() string {
	return "activity_instances"
}

// NewActivityInstance creates a new instance in PENDING_PAY
func NewActivityInstance(tenantID, configID, memberID uuid.UUID, code TemplateCode, data InstanceData) (*ActivityInstance, error) {
	if configID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Config ID cannot be empty")
	}
	if memberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBER", "Member ID cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_TEMPLATE", "Template code cannot be empty")
	}
	if data == nil {
		data = InstanceData{}
	}

	inst := &ActivityInstance{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConfigID:            configID,
		MemberID:            memberID,
		TemplateCode:        code,
		Data:                data,
		Status:              StatusPendingPay,
	}

	inst.AddDomainEvent(NewInstanceCreatedEvent(inst))

	return inst, nil
}

// AttachOrder associates the instance with an external order reference
func (i *ActivityInstance) AttachOrder(orderSN string) {
	i.OrderSN = orderSN
	i.UpdatedAt = time.Now()
}

// IsLeader returns true for the leader instance of a multi-party group
func (i *ActivityInstance) IsLeader() bool {
	return i.Data.Bool(DataKeyIsLeader)
}

// TransitTo moves the instance to the next status, validating against the
// transition table. Rejected transitions leave the instance untouched.
// Entering PAID stamps PayTime; entering a terminal status stamps EndTime.
func (i *ActivityInstance) TransitTo(next InstanceStatus, extra InstanceData) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown status %s", next))
	}
	if !i.Status.CanTransitionTo(next) {
		return NewIllegalTransitionError(i.Status, next)
	}

	old := i.Status
	now := time.Now()
	i.Status = next
	if len(extra) > 0 {
		if i.Data == nil {
			i.Data = InstanceData{}
		}
		i.Data.Merge(extra)
	}
	if next == StatusPaid {
		i.PayTime = &now
	}
	if next.IsTerminal() {
		i.EndTime = &now
	}
	i.UpdatedAt = now

	i.AddDomainEvent(NewInstanceStatusChangedEvent(i, old, next))

	return nil
}

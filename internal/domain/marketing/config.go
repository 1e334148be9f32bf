package marketing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StockMode determines how inventory is enforced at admission time
type StockMode string

const (
	// StockModeStrongLock reserves inventory atomically before the instance
	// is created; oversell is impossible
	StockModeStrongLock StockMode = "STRONG_LOCK"
	// StockModeLazyCheck skips reservation; correctness is deferred to
	// downstream settlement and reconciliation
	StockModeLazyCheck StockMode = "LAZY_CHECK"
)

// IsValid checks if the mode is a known StockMode
func (m StockMode) IsValid() bool {
	return m == StockModeStrongLock || m == StockModeLazyCheck
}

// RuleBag holds the activity-type rule document. The engine treats it as an
// opaque blob; each strategy decodes its own typed schema from it.
type RuleBag json.RawMessage

// Value implements driver.Valuer for database storage
func (b RuleBag) Value() (driver.Value, error) {
	if len(b) == 0 {
		return "{}", nil
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (b *RuleBag) Scan(value interface{}) error {
	if value == nil {
		*b = RuleBag("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*b = RuleBag(append([]byte(nil), v...))
	case string:
		*b = RuleBag(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleBag", value)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (b RuleBag) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	return b, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (b *RuleBag) UnmarshalJSON(data []byte) error {
	*b = RuleBag(append([]byte(nil), data...))
	return nil
}

// Decode unmarshals the bag into the given typed rules struct
func (b RuleBag) Decode(out interface{}) error {
	if len(b) == 0 {
		return shared.NewDomainError("INVALID_RULES", "Activity rule bag is empty")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return shared.NewDomainError("INVALID_RULES", fmt.Sprintf("Malformed activity rules: %v", err))
	}
	return nil
}

// ActivityConfig is an activity's published configuration. It is read-only
// for this engine; authoring happens elsewhere.
type ActivityConfig struct {
	shared.BaseEntity
	TenantID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	TemplateCode TemplateCode `gorm:"type:varchar(50);not null;index"`
	StoreID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	StockMode    StockMode    `gorm:"type:varchar(20);not null"`
	Rules        RuleBag      `gorm:"type:jsonb"`
	StartTime    time.Time    `gorm:"index"`
	EndTime      time.Time    `gorm:"index"`
}

// TableName returns the table name for GORM
func (ActivityConfig) TableName() string {
	return "activity_configs"
}

// IsOpenAt reports whether the activity accepts joins at the given time
func (c *ActivityConfig) IsOpenAt(t time.Time) bool {
	if !c.StartTime.IsZero() && t.Before(c.StartTime) {
		return false
	}
	if !c.EndTime.IsZero() && t.After(c.EndTime) {
		return false
	}
	return true
}

// EffectiveStockMode returns the config's mode, falling back to the
// template's registry default when the config does not set one
func (c *ActivityConfig) EffectiveStockMode() StockMode {
	if c.StockMode.IsValid() {
		return c.StockMode
	}
	if meta, err := MetadataFor(c.TemplateCode); err == nil {
		return meta.DefaultStockMode
	}
	return StockModeLazyCheck
}

// AuthoritativeStock reads the total stock from the rule bag. The cache
// entry is lazily re-materialized from this value on a miss.
func (c *ActivityConfig) AuthoritativeStock() (int64, error) {
	var probe struct {
		Stock int64 `json:"stock"`
	}
	if err := c.Rules.Decode(&probe); err != nil {
		return 0, err
	}
	if probe.Stock < 0 {
		return 0, shared.NewDomainError("INVALID_RULES", "Activity stock cannot be negative")
	}
	return probe.Stock, nil
}

// GiftAssetRule reads the optional gift-asset rule from the bag, returning
// nil when the config does not declare one
func (c *ActivityConfig) GiftAssetRule() (*GiftAssetRule, error) {
	var probe struct {
		GiftAsset *GiftAssetRule `json:"giftAsset"`
	}
	if err := c.Rules.Decode(&probe); err != nil {
		return nil, err
	}
	return probe.GiftAsset, nil
}

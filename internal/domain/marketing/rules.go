package marketing

import (
	"github.com/mall/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// GiftAssetRule declares a redeemable asset issued to the member when the
// instance settles
type GiftAssetRule struct {
	AssetType string          `json:"assetType"`
	Balance   decimal.Decimal `json:"balance"`
}

// GroupBuyRules is the rule schema for GROUP_BUY and COURSE_GROUP_BUY
type GroupBuyRules struct {
	Price       decimal.Decimal  `json:"price"`
	LeaderPrice *decimal.Decimal `json:"leaderPrice,omitempty"`
	MinCount    int64            `json:"minCount"`
	MaxCount    int64            `json:"maxCount,omitempty"`
	Stock       int64            `json:"stock"`
	GiftAsset   *GiftAssetRule   `json:"giftAsset,omitempty"`
}

// Validate checks rule consistency at authoring time
func (r *GroupBuyRules) Validate() error {
	if r.Price.IsNegative() || r.Price.IsZero() {
		return shared.NewDomainError("INVALID_RULES", "Group buy price must be positive")
	}
	if r.LeaderPrice != nil && r.LeaderPrice.IsNegative() {
		return shared.NewDomainError("INVALID_RULES", "Leader price cannot be negative")
	}
	if r.MinCount < 2 {
		return shared.NewDomainError("INVALID_RULES", "Group buy requires at least two participants")
	}
	if r.MaxCount != 0 && r.MaxCount < r.MinCount {
		return shared.NewDomainError("INVALID_RULES", "Max count cannot be below min count")
	}
	if r.Stock < 0 {
		return shared.NewDomainError("INVALID_RULES", "Stock cannot be negative")
	}
	return nil
}

// GroupBuyRulesFrom decodes the group-buy rule schema from a config
func GroupBuyRulesFrom(cfg *ActivityConfig) (*GroupBuyRules, error) {
	var rules GroupBuyRules
	if err := cfg.Rules.Decode(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// CourseGroupBuyRules extends group-buy rules with course scheduling inputs
type CourseGroupBuyRules struct {
	GroupBuyRules
	CourseID     string `json:"courseId"`
	LessonCount  int64  `json:"lessonCount"`
	ScheduleDays int64  `json:"scheduleDays"`
}

// Validate checks the group rules plus the course binding
func (r *CourseGroupBuyRules) Validate() error {
	if err := r.GroupBuyRules.Validate(); err != nil {
		return err
	}
	if r.CourseID == "" {
		return shared.NewDomainError("INVALID_RULES", "Course group buy requires a course id")
	}
	if r.LessonCount < 0 || r.ScheduleDays < 0 {
		return shared.NewDomainError("INVALID_RULES", "Lesson count and schedule days cannot be negative")
	}
	return nil
}

// CourseGroupBuyRulesFrom decodes the course-group-buy rule schema
func CourseGroupBuyRulesFrom(cfg *ActivityConfig) (*CourseGroupBuyRules, error) {
	var rules CourseGroupBuyRules
	if err := cfg.Rules.Decode(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// FlashSaleSKU is one sellable SKU within a flash sale
type FlashSaleSKU struct {
	SKUID string          `json:"skuId"`
	Price decimal.Decimal `json:"price"`
}

// FlashSaleRules is the rule schema for FLASH_SALE
type FlashSaleRules struct {
	SKUs           []FlashSaleSKU `json:"skus"`
	LimitPerMember int64          `json:"limitPerMember"`
	Stock          int64          `json:"stock"`
	GiftAsset      *GiftAssetRule `json:"giftAsset,omitempty"`
}

// Validate checks rule consistency at authoring time
func (r *FlashSaleRules) Validate() error {
	if len(r.SKUs) == 0 {
		return shared.NewDomainError("INVALID_RULES", "Flash sale requires at least one SKU")
	}
	for _, sku := range r.SKUs {
		if sku.SKUID == "" {
			return shared.NewDomainError("INVALID_RULES", "Flash sale SKU id cannot be empty")
		}
		if sku.Price.IsNegative() || sku.Price.IsZero() {
			return shared.NewDomainError("INVALID_RULES", "Flash sale SKU price must be positive")
		}
	}
	if r.Stock < 0 {
		return shared.NewDomainError("INVALID_RULES", "Stock cannot be negative")
	}
	return nil
}

// FindSKU returns the SKU with the given id, or nil
func (r *FlashSaleRules) FindSKU(skuID string) *FlashSaleSKU {
	for idx := range r.SKUs {
		if r.SKUs[idx].SKUID == skuID {
			return &r.SKUs[idx]
		}
	}
	return nil
}

// FlashSaleRulesFrom decodes the flash-sale rule schema from a config
func FlashSaleRulesFrom(cfg *ActivityConfig) (*FlashSaleRules, error) {
	var rules FlashSaleRules
	if err := cfg.Rules.Decode(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// FullReductionRules is the rule schema for FULL_REDUCTION. Full reduction
// never creates instances; it only adjusts an order amount at pricing time.
type FullReductionRules struct {
	Threshold decimal.Decimal `json:"threshold"`
	Reduction decimal.Decimal `json:"reduction"`
}

// Validate checks rule consistency at authoring time
func (r *FullReductionRules) Validate() error {
	if r.Threshold.IsNegative() || r.Threshold.IsZero() {
		return shared.NewDomainError("INVALID_RULES", "Full reduction threshold must be positive")
	}
	if r.Reduction.IsNegative() || r.Reduction.IsZero() {
		return shared.NewDomainError("INVALID_RULES", "Full reduction amount must be positive")
	}
	if r.Reduction.GreaterThan(r.Threshold) {
		return shared.NewDomainError("INVALID_RULES", "Reduction cannot exceed its threshold")
	}
	return nil
}

// FullReductionRulesFrom decodes the full-reduction rule schema
func FullReductionRulesFrom(cfg *ActivityConfig) (*FullReductionRules, error) {
	var rules FullReductionRules
	if err := cfg.Rules.Decode(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// MemberUpgradeRules is the rule schema for MEMBER_UPGRADE
type MemberUpgradeRules struct {
	TargetLevel string          `json:"targetLevel"`
	Price       decimal.Decimal `json:"price"`
	GiftAsset   *GiftAssetRule  `json:"giftAsset,omitempty"`
}

// Validate checks rule consistency at authoring time
func (r *MemberUpgradeRules) Validate() error {
	if r.TargetLevel == "" {
		return shared.NewDomainError("INVALID_RULES", "Member upgrade target level cannot be empty")
	}
	if r.Price.IsNegative() || r.Price.IsZero() {
		return shared.NewDomainError("INVALID_RULES", "Member upgrade price must be positive")
	}
	return nil
}

// MemberUpgradeRulesFrom decodes the member-upgrade rule schema
func MemberUpgradeRulesFrom(cfg *ActivityConfig) (*MemberUpgradeRules, error) {
	var rules MemberUpgradeRules
	if err := cfg.Rules.Decode(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

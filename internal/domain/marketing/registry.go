package marketing

import (
	"fmt"
	"sort"

	"github.com/mall/backend/internal/domain/shared"
)

// TemplateCode identifies an activity type
type TemplateCode string

const (
	TemplateGroupBuy       TemplateCode = "GROUP_BUY"
	TemplateCourseGroupBuy TemplateCode = "COURSE_GROUP_BUY"
	TemplateFlashSale      TemplateCode = "FLASH_SALE"
	TemplateFullReduction  TemplateCode = "FULL_REDUCTION"
	TemplateMemberUpgrade  TemplateCode = "MEMBER_UPGRADE"
)

// String returns the string representation of the template code
func (c TemplateCode) String() string {
	return string(c)
}

// TemplateMetadata is the static capability record for an activity type.
// Consistency invariants: CanFail implies HasInstance, and a template
// without instances has neither state nor failure semantics.
type TemplateMetadata struct {
	Code             TemplateCode
	Name             string
	HasInstance      bool
	HasState         bool
	CanFail          bool
	CanParallel      bool
	DefaultStockMode StockMode
	RuleSchema       string
}

// templateRegistry is the fixed table of supported activity types. New types
// are added here and registered with the factory at process start; the
// orchestration core never changes for them.
var templateRegistry = map[TemplateCode]TemplateMetadata{
	TemplateGroupBuy: {
		Code:             TemplateGroupBuy,
		Name:             "Group Buy",
		HasInstance:      true,
		HasState:         true,
		CanFail:          true,
		CanParallel:      false,
		DefaultStockMode: StockModeStrongLock,
		RuleSchema:       "GroupBuyRules",
	},
	TemplateCourseGroupBuy: {
		Code:             TemplateCourseGroupBuy,
		Name:             "Course Group Buy",
		HasInstance:      true,
		HasState:         true,
		CanFail:          true,
		CanParallel:      false,
		DefaultStockMode: StockModeStrongLock,
		RuleSchema:       "CourseGroupBuyRules",
	},
	TemplateFlashSale: {
		Code:             TemplateFlashSale,
		Name:             "Flash Sale",
		HasInstance:      true,
		HasState:         true,
		CanFail:          true,
		CanParallel:      true,
		DefaultStockMode: StockModeStrongLock,
		RuleSchema:       "FlashSaleRules",
	},
	TemplateFullReduction: {
		Code:             TemplateFullReduction,
		Name:             "Full Reduction",
		HasInstance:      false,
		HasState:         false,
		CanFail:          false,
		CanParallel:      true,
		DefaultStockMode: StockModeLazyCheck,
		RuleSchema:       "FullReductionRules",
	},
	TemplateMemberUpgrade: {
		Code:             TemplateMemberUpgrade,
		Name:             "Member Upgrade",
		HasInstance:      true,
		HasState:         false,
		CanFail:          false,
		CanParallel:      true,
		DefaultStockMode: StockModeLazyCheck,
		RuleSchema:       "MemberUpgradeRules",
	},
}

// MetadataFor returns the registry record for a template code
func MetadataFor(code TemplateCode) (TemplateMetadata, error) {
	meta, ok := templateRegistry[code]
	if !ok {
		return TemplateMetadata{}, shared.NewDomainError(
			"NOT_FOUND",
			fmt.Sprintf("No activity template registered for code %s", code),
		)
	}
	return meta, nil
}

// AllTemplates returns every registered template, ordered by code
func AllTemplates() []TemplateMetadata {
	out := make([]TemplateMetadata, 0, len(templateRegistry))
	for _, meta := range templateRegistry {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ValidateRegistry checks the capability invariants of every entry. It is
// invoked when the strategy factory is built so an inconsistent table fails
// fast at startup.
func ValidateRegistry() error {
	for code, meta := range templateRegistry {
		if meta.Code != code {
			return fmt.Errorf("template %s: metadata code mismatch (%s)", code, meta.Code)
		}
		if meta.CanFail && !meta.HasInstance {
			return fmt.Errorf("template %s: canFail requires hasInstance", code)
		}
		if !meta.HasInstance && (meta.HasState || meta.CanFail) {
			return fmt.Errorf("template %s: instance-less template cannot have state or failure", code)
		}
		if !meta.DefaultStockMode.IsValid() {
			return fmt.Errorf("template %s: invalid default stock mode %s", code, meta.DefaultStockMode)
		}
	}
	return nil
}

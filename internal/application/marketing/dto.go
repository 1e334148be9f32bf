package marketing

import (
	"encoding/json"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JoinActivityRequest represents a member's request to join an activity
type JoinActivityRequest struct {
	ConfigID    uuid.UUID       `json:"config_id" binding:"required"`
	GroupID     *uuid.UUID      `json:"group_id"`
	SKUID       string          `json:"sku_id"`
	Quantity    int64           `json:"quantity"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	OrderSN     string          `json:"order_sn" binding:"required,min=1,max=64"`
}

// JoinActivityResponse represents the outcome of a join
type JoinActivityResponse struct {
	InstanceID uuid.UUID                `json:"instance_id"`
	GroupID    *uuid.UUID               `json:"group_id,omitempty"`
	Status     marketing.InstanceStatus `json:"status"`
	Price      decimal.Decimal          `json:"price"`
	// Replayed is true when the response was served from the join dedupe
	// window instead of creating a new instance
	Replayed bool `json:"replayed"`
}

// InstanceResponse represents an activity instance in API responses
type InstanceResponse struct {
	ID           uuid.UUID                `json:"id"`
	ConfigID     uuid.UUID                `json:"config_id"`
	MemberID     uuid.UUID                `json:"member_id"`
	TemplateCode marketing.TemplateCode   `json:"template_code"`
	OrderSN      string                   `json:"order_sn,omitempty"`
	GroupID      *uuid.UUID               `json:"group_id,omitempty"`
	Status       marketing.InstanceStatus `json:"status"`
	Data         marketing.InstanceData   `json:"data"`
	PayTime      *time.Time               `json:"pay_time,omitempty"`
	EndTime      *time.Time               `json:"end_time,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// ToInstanceResponse converts a domain instance to its response DTO
func ToInstanceResponse(inst *marketing.ActivityInstance) InstanceResponse {
	return InstanceResponse{
		ID:           inst.ID,
		ConfigID:     inst.ConfigID,
		MemberID:     inst.MemberID,
		TemplateCode: inst.TemplateCode,
		OrderSN:      inst.OrderSN,
		GroupID:      inst.GroupID,
		Status:       inst.Status,
		Data:         inst.Data,
		PayTime:      inst.PayTime,
		EndTime:      inst.EndTime,
		CreatedAt:    inst.CreatedAt,
		UpdatedAt:    inst.UpdatedAt,
	}
}

// ToInstanceResponses converts a slice of domain instances
func ToInstanceResponses(insts []marketing.ActivityInstance) []InstanceResponse {
	out := make([]InstanceResponse, len(insts))
	for idx := range insts {
		out[idx] = ToInstanceResponse(&insts[idx])
	}
	return out
}

// GroupProgressResponse represents the state of one group-buy group
type GroupProgressResponse struct {
	GroupID      uuid.UUID          `json:"group_id"`
	LeaderID     uuid.UUID          `json:"leader_id"`
	CurrentCount int64              `json:"current_count"`
	TargetCount  int64              `json:"target_count"`
	Members      []InstanceResponse `json:"members"`
}

// QuotePriceRequest asks for the payable amount without joining
type QuotePriceRequest struct {
	ConfigID    uuid.UUID       `json:"config_id" binding:"required"`
	GroupID     *uuid.UUID      `json:"group_id"`
	SKUID       string          `json:"sku_id"`
	Quantity    int64           `json:"quantity"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// QuotePriceResponse carries the quoted amount
type QuotePriceResponse struct {
	ConfigID uuid.UUID       `json:"config_id"`
	Price    decimal.Decimal `json:"price"`
}

// PaymentCallbackRequest represents a payment confirmation from the order
// system
type PaymentCallbackRequest struct {
	OrderSN string `json:"order_sn" binding:"required,min=1,max=64"`
}

// TransitStatusRequest represents an operator-driven status transition
type TransitStatusRequest struct {
	Status marketing.InstanceStatus `json:"status" binding:"required"`
	Extra  marketing.InstanceData   `json:"extra"`
}

// BatchTransitStatusRequest transitions several instances at once
type BatchTransitStatusRequest struct {
	InstanceIDs []uuid.UUID              `json:"instance_ids" binding:"required,min=1"`
	Status      marketing.InstanceStatus `json:"status" binding:"required"`
}

// ValidateConfigDraftRequest validates an activity draft before publishing
type ValidateConfigDraftRequest struct {
	TemplateCode marketing.TemplateCode `json:"template_code" binding:"required"`
	StockMode    marketing.StockMode    `json:"stock_mode"`
	Rules        json.RawMessage        `json:"rules" binding:"required"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      time.Time              `json:"end_time"`
}

// TemplateResponse describes one registered activity template
type TemplateResponse struct {
	Code             marketing.TemplateCode `json:"code"`
	Name             string                 `json:"name"`
	HasInstance      bool                   `json:"has_instance"`
	HasState         bool                   `json:"has_state"`
	CanFail          bool                   `json:"can_fail"`
	CanParallel      bool                   `json:"can_parallel"`
	DefaultStockMode marketing.StockMode    `json:"default_stock_mode"`
}

// ToTemplateResponse converts registry metadata to its response DTO
func ToTemplateResponse(meta marketing.TemplateMetadata) TemplateResponse {
	return TemplateResponse{
		Code:             meta.Code,
		Name:             meta.Name,
		HasInstance:      meta.HasInstance,
		HasState:         meta.HasState,
		CanFail:          meta.CanFail,
		CanParallel:      meta.CanParallel,
		DefaultStockMode: meta.DefaultStockMode,
	}
}

// InventoryResponse reports the cached remaining count for an activity
type InventoryResponse struct {
	ConfigID  uuid.UUID `json:"config_id"`
	Remaining int64     `json:"remaining"`
	Cached    bool      `json:"cached"`
}

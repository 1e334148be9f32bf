package handler

import (
	appmarketing "github.com/mall/backend/internal/application/marketing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketingHandler exposes the activity engine over HTTP
type MarketingHandler struct {
	BaseHandler
	service *appmarketing.InstanceService
}

// NewMarketingHandler creates a new MarketingHandler
func NewMarketingHandler(service *appmarketing.InstanceService) *MarketingHandler {
	return &MarketingHandler{service: service}
}

// RegisterRoutes registers marketing routes
func (h *MarketingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	marketing := rg.Group("/marketing")
	{
		marketing.GET("/templates", h.ListTemplates)

		activities := marketing.Group("/activities")
		{
			activities.POST("/validate", h.ValidateConfigDraft)
			activities.POST("/join", h.Join)
			activities.POST("/quote", h.QuotePrice)
			activities.GET("/:id/display", h.GetDisplayData)
			activities.GET("/:id/inventory", h.GetInventory)
			activities.POST("/:id/inventory/seed", h.SeedInventory)
		}

		instances := marketing.Group("/instances")
		{
			instances.GET("/:id", h.GetInstance)
			instances.POST("/:id/transit", h.TransitStatus)
			instances.POST("/batch-transit", h.BatchTransitStatus)
			instances.POST("/expire", h.ExpirePending)
		}

		marketing.GET("/groups/:id", h.GetGroupProgress)
		marketing.POST("/payments/callback", h.PaymentCallback)
	}
}

// ListTemplates returns every registered activity template
func (h *MarketingHandler) ListTemplates(c *gin.Context) {
	h.Success(c, h.service.ListTemplates())
}

// Join admits the calling member into an activity
func (h *MarketingHandler) Join(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	memberID, err := getMemberID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid member")
		return
	}

	var req appmarketing.JoinActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Join(c.Request.Context(), tenantID, memberID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// QuotePrice returns the payable amount without joining
func (h *MarketingHandler) QuotePrice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	memberID, err := getMemberID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid member")
		return
	}

	var req appmarketing.QuotePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.QuotePrice(c.Request.Context(), tenantID, memberID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ValidateConfigDraft validates an activity draft before publishing
func (h *MarketingHandler) ValidateConfigDraft(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req appmarketing.ValidateConfigDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.ValidateConfigDraft(c.Request.Context(), tenantID, req); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"valid": true})
}

// GetDisplayData returns the storefront projection for an activity
func (h *MarketingHandler) GetDisplayData(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid activity ID")
		return
	}

	data, err := h.service.GetDisplayData(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// GetInventory reports the cached remaining stock for an activity
func (h *MarketingHandler) GetInventory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid activity ID")
		return
	}

	resp, err := h.service.GetInventory(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SeedInventory re-materializes the cached stock from the activity rules
func (h *MarketingHandler) SeedInventory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid activity ID")
		return
	}

	if err := h.service.SeedInventory(c.Request.Context(), tenantID, configID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetInstance retrieves one activity instance
func (h *MarketingHandler) GetInstance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return
	}

	resp, err := h.service.GetInstance(c.Request.Context(), tenantID, instanceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// TransitStatus moves one instance to the requested status
func (h *MarketingHandler) TransitStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid instance ID")
		return
	}

	var req appmarketing.TransitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inst, err := h.service.TransitStatus(c.Request.Context(), tenantID, instanceID, req.Status, req.Extra)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appmarketing.ToInstanceResponse(inst))
}

// BatchTransitStatus transitions several instances best-effort
func (h *MarketingHandler) BatchTransitStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req appmarketing.BatchTransitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.BatchTransitStatus(c.Request.Context(), tenantID, req.InstanceIDs, req.Status, nil); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ExpirePending sweeps unpaid instances past the payment deadline
func (h *MarketingHandler) ExpirePending(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	expired, err := h.service.ExpirePendingInstances(c.Request.Context(), tenantID, 0)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"expired": expired})
}

// GetGroupProgress returns the roster and headcount of a group-buy group
func (h *MarketingHandler) GetGroupProgress(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid group ID")
		return
	}

	resp, err := h.service.GetGroupProgress(c.Request.Context(), tenantID, groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// PaymentCallback processes a payment confirmation from the order system
func (h *MarketingHandler) PaymentCallback(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req appmarketing.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.HandlePaymentSuccess(c.Request.Context(), tenantID, req.OrderSN); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"processed": true})
}

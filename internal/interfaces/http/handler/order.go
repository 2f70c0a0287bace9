package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appordering "github.com/venda/backend/internal/application/ordering"
)

// OrderHandler serves order commit and read endpoints
type OrderHandler struct {
	BaseHandler
	commitService *appordering.CommitService
	queryService  *appordering.QueryService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(commitService *appordering.CommitService, queryService *appordering.QueryService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		BaseHandler:   NewBaseHandler(logger),
		commitService: commitService,
		queryService:  queryService,
	}
}

// Commit handles POST /orders/commit
func (h *OrderHandler) Commit(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req appordering.CommitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	// The header wins over the body field when both are present.
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	req.CommittedBy = h.userID(c)

	resp, err := h.commitService.Commit(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.Replayed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// GetByID handles GET /orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	resp, err := h.queryService.GetByID(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetByNumber handles GET /orders/number/:number
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Order number is required")
		return
	}

	resp, err := h.queryService.GetByNumber(c.Request.Context(), tenantID, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var filter appordering.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	orders, total, err := h.queryService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apptoken "github.com/venda/backend/internal/application/token"
)

// TokenHandler serves token configuration and pool endpoints
type TokenHandler struct {
	BaseHandler
	poolService *apptoken.PoolService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(poolService *apptoken.PoolService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		BaseHandler: NewBaseHandler(logger),
		poolService: poolService,
	}
}

// CreateConfig handles POST /tokens/configs
func (h *TokenHandler) CreateConfig(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req apptoken.CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.poolService.CreateConfig(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListConfigs handles GET /tokens/configs
func (h *TokenHandler) ListConfigs(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	configs, err := h.poolService.ListConfigs(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, configs)
}

// Provision handles POST /tokens/provision
func (h *TokenHandler) Provision(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req apptoken.ProvisionTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.poolService.Provision(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PoolStatus handles GET /tokens/configs/:id/pool
func (h *TokenHandler) PoolStatus(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid config ID")
		return
	}

	status, err := h.poolService.PoolStatus(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// disableTokenRequest carries the operator's note for a manual disable
type disableTokenRequest struct {
	Note string `json:"note"`
}

// Disable handles POST /tokens/:id/disable
func (h *TokenHandler) Disable(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid token ID")
		return
	}

	var req disableTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.poolService.DisableToken(c.Request.Context(), tenantID, tokenID, req.Note); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

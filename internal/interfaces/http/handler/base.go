package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/interfaces/http/dto"
)

// developmentTenantID is assumed when no X-Tenant-ID header is present,
// for local single-tenant setups
var developmentTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// BaseHandler provides shared response helpers for all handlers
type BaseHandler struct {
	logger *zap.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(logger *zap.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with data and pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response with data
func (h *BaseHandler) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 response for malformed input
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest,
		dto.NewErrorResponse(dto.ErrCodeBadRequest, message, h.requestID(c)))
}

// HandleError maps a domain error to its HTTP status. Errors without a
// domain code become opaque 500s so internals never leak to clients.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("unhandled domain error",
				zap.String("code", domainErr.Code),
				zap.Error(err))
		}
		c.JSON(status, dto.NewErrorResponse(domainErr.Code, domainErr.Message, h.requestID(c)))
		return
	}

	h.logger.Error("internal error", zap.Error(err))
	c.JSON(http.StatusInternalServerError,
		dto.NewErrorResponse(dto.ErrCodeInternal, "An internal error occurred", h.requestID(c)))
}

// tenantID resolves the caller's tenant from the X-Tenant-ID header
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	header := c.GetHeader("X-Tenant-ID")
	if header == "" {
		return developmentTenantID, true
	}
	id, err := uuid.Parse(header)
	if err != nil {
		h.BadRequest(c, "Invalid X-Tenant-ID header")
		return uuid.Nil, false
	}
	return id, true
}

// userID resolves the acting user from the X-User-ID header, if present
func (h *BaseHandler) userID(c *gin.Context) *uuid.UUID {
	header := c.GetHeader("X-User-ID")
	if header == "" {
		return nil
	}
	id, err := uuid.Parse(header)
	if err != nil {
		return nil
	}
	return &id
}

func (h *BaseHandler) requestID(c *gin.Context) string {
	if v, exists := c.Get("request_id"); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

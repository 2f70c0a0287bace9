package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/infrastructure/persistence"
)

// SystemHandler serves health and readiness probes
type SystemHandler struct {
	BaseHandler
	db *persistence.Database
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db *persistence.Database, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: NewBaseHandler(logger),
		db:          db,
	}
}

// Health handles GET /health. Liveness only, no dependency checks.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready and verifies the database is reachable
func (h *SystemHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

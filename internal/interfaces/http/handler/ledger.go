package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appledger "github.com/venda/backend/internal/application/ledger"
)

// LedgerHandler serves cash ledger endpoints
type LedgerHandler struct {
	BaseHandler
	postingService *appledger.PostingService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(postingService *appledger.PostingService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler:    NewBaseHandler(logger),
		postingService: postingService,
	}
}

// Balance handles GET /ledger/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	balance, err := h.postingService.Balance(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"balance": balance})
}

// PostDisbursement handles POST /ledger/disbursements
func (h *LedgerHandler) PostDisbursement(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req appledger.PostDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	resp, err := h.postingService.PostDisbursement(
		c.Request.Context(), tenantID, amount, req.Description, h.userID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List handles GET /ledger/transactions
func (h *LedgerHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var query struct {
		From     time.Time `form:"from" time_format:"2006-01-02"`
		To       time.Time `form:"to" time_format:"2006-01-02"`
		Page     int       `form:"page"`
		PageSize int       `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if query.To.IsZero() {
		query.To = time.Now()
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	txs, total, err := h.postingService.ListByPeriod(
		c.Request.Context(), tenantID, query.From, query.To, query.Page, query.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, txs, total, query.Page, query.PageSize)
}

package ordering

import (
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/ordering"
)

// CommitOrderRequest is the full cart submitted for atomic commit.
// CommittedBy is filled from the authenticated request, never the body.
type CommitOrderRequest struct {
	IdempotencyKey string             `json:"idempotency_key"`
	CommittedBy    *uuid.UUID         `json:"-"`
	PaymentMethod  string             `json:"payment_method" binding:"required,payment_method"`
	AmountReceived float64            `json:"amount_received" binding:"min=0"`
	Discount       *float64           `json:"discount"`
	Tax            *float64           `json:"tax"`
	CustomerRef    string             `json:"customer_ref"`
	Remark         string             `json:"remark"`
	Lines          []CommitLineItem   `json:"lines" binding:"required,min=1,dive"`
}

// CommitLineItem is one cart line. Kind selects which reservation path
// the line takes; the config and product fields are kind-specific.
type CommitLineItem struct {
	Kind          string           `json:"kind" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	SKU           string           `json:"sku"`
	Category      string           `json:"category"`
	ProductID     *uuid.UUID       `json:"product_id"`
	VariantID     *uuid.UUID       `json:"variant_id"`
	TokenConfigID *uuid.UUID       `json:"token_config_id"`
	Quantity      int              `json:"quantity" binding:"required,min=1"`
	UnitPrice     float64          `json:"unit_price" binding:"min=0"`
	Remark        string           `json:"remark"`
	Components    []CommitLineItem `json:"components" binding:"dive"`
}

// CommitOrderResponse is the committed order plus everything the POS
// needs to print a receipt: sold credentials (masked) and any non-fatal
// warnings collected along the way.
type CommitOrderResponse struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	Subtotal       string              `json:"subtotal"`
	TaxAmount      string              `json:"tax_amount"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	AmountReceived string              `json:"amount_received"`
	CompletedAt    *time.Time          `json:"completed_at"`
	Lines          []CommitLineResult  `json:"lines"`
	Credentials    []SoldCredential    `json:"credentials,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	Replayed       bool                `json:"replayed,omitempty"`
}

// CommitLineResult echoes one committed line
type CommitLineResult struct {
	LineID       uuid.UUID  `json:"line_id"`
	ParentLineID *uuid.UUID `json:"parent_line_id,omitempty"`
	Kind         string     `json:"kind"`
	Name         string     `json:"name"`
	Quantity     int        `json:"quantity"`
	UnitPrice    string     `json:"unit_price"`
	TotalPrice   string     `json:"total_price"`
}

// SoldCredential is a receipt-safe view of one sold token. The password
// is masked; the full credential never leaves the commit transaction.
type SoldCredential struct {
	LineID         uuid.UUID  `json:"line_id"`
	Code           string     `json:"code"`
	Username       string     `json:"username"`
	MaskedPassword string     `json:"masked_password"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// OrderResponse is the read-side view of an order
type OrderResponse struct {
	OrderID        uuid.UUID          `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	Status         string             `json:"status"`
	PaymentStatus  string             `json:"payment_status"`
	PaymentMethod  string             `json:"payment_method"`
	Subtotal       string             `json:"subtotal"`
	TaxAmount      string             `json:"tax_amount"`
	DiscountAmount string             `json:"discount_amount"`
	TotalAmount    string             `json:"total_amount"`
	AmountReceived string             `json:"amount_received"`
	CustomerRef    string             `json:"customer_ref,omitempty"`
	Remark         string             `json:"remark,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason   string             `json:"cancel_reason,omitempty"`
	Lines          []CommitLineResult `json:"lines"`
}

// OrderListFilter carries list query parameters
type OrderListFilter struct {
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
	Status    *string    `form:"status"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
	Search    string     `form:"search"`
}

// ToCommitLineResults maps order lines to their response form
func ToCommitLineResults(lines []ordering.OrderLine) []CommitLineResult {
	results := make([]CommitLineResult, 0, len(lines))
	for _, line := range lines {
		results = append(results, CommitLineResult{
			LineID:       line.ID,
			ParentLineID: line.ParentLineID,
			Kind:         line.Kind.String(),
			Name:         line.Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice.StringFixed(2),
			TotalPrice:   line.TotalPrice.StringFixed(2),
		})
	}
	return results
}

// ToOrderResponse maps an order aggregate to its response form
func ToOrderResponse(order *ordering.Order) OrderResponse {
	return OrderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status.String(),
		PaymentStatus:  order.PaymentStatus.String(),
		PaymentMethod:  string(order.PaymentMethod),
		Subtotal:       order.Subtotal.StringFixed(2),
		TaxAmount:      order.TaxAmount.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		AmountReceived: order.AmountReceived.StringFixed(2),
		CustomerRef:    order.CustomerRef,
		Remark:         order.Remark,
		CreatedAt:      order.CreatedAt,
		CompletedAt:    order.CompletedAt,
		CancelledAt:    order.CancelledAt,
		CancelReason:   order.CancelReason,
		Lines:          ToCommitLineResults(order.Lines),
	}
}

package ordering

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/shared/valueobject"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusCompleted || target == OrderStatusCancelled
	case OrderStatusCompleted, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// PaymentStatus represents how much of the order total has been received
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how the customer paid
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodGCash   PaymentMethod = "GCASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodBalance PaymentMethod = "BALANCE"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodGCash, PaymentMethodCard, PaymentMethodBalance:
		return true
	}
	return false
}

// Order represents one committed sale. It is created by the commit protocol
// and immutable once COMPLETED except for status transitions.
type Order struct {
	shared.TenantAggregateRoot
	OrderNumber    string
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	PaymentMethod  PaymentMethod
	Lines          []OrderLine
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	AmountReceived decimal.Decimal
	CustomerRef    string
	Remark         string
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewOrder creates a new pending order
func NewOrder(tenantID uuid.UUID, orderNumber string, paymentMethod PaymentMethod) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if !paymentMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", paymentMethod))
	}

	return &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OrderNumber:         orderNumber,
		Status:              OrderStatusPending,
		PaymentStatus:       PaymentStatusUnpaid,
		PaymentMethod:       paymentMethod,
		Lines:               make([]OrderLine, 0),
		Subtotal:            decimal.Zero,
		TaxAmount:           decimal.Zero,
		DiscountAmount:      decimal.Zero,
		TotalAmount:         decimal.Zero,
		AmountReceived:      decimal.Zero,
	}, nil
}

// AddLine adds a top-level line to the order. Only allowed while PENDING.
func (o *Order) AddLine(line *OrderLine) error {
	if o.Status != OrderStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Cannot add lines to a non-pending order")
	}
	line.OrderID = o.ID
	o.Lines = append(o.Lines, *line)
	o.recalculateTotals()
	o.UpdatedAt = time.Now()
	return nil
}

// AddComponentLine attaches a combo component under an existing combo line.
// Components carry zero price: the parent line owns the money.
func (o *Order) AddComponentLine(parentLineID uuid.UUID, line *OrderLine) error {
	if o.Status != OrderStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Cannot add lines to a non-pending order")
	}
	parent := o.GetLine(parentLineID)
	if parent == nil {
		return shared.NewDomainError("LINE_NOT_FOUND", "Parent combo line not found")
	}
	if parent.Kind != LineKindCombo {
		return shared.NewDomainError("INVALID_LINE_KIND", "Component lines can only be attached to combo lines")
	}
	line.OrderID = o.ID
	line.ParentLineID = &parentLineID
	line.UnitPrice = decimal.Zero
	line.TotalPrice = decimal.Zero
	o.Lines = append(o.Lines, *line)
	o.UpdatedAt = time.Now()
	return nil
}

// ApplyDiscount applies an order-level discount. Only allowed while PENDING.
func (o *Order) ApplyDiscount(discount valueobject.Money) error {
	if o.Status != OrderStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Cannot apply discount to a non-pending order")
	}
	if discount.Amount().IsNegative() {
		return shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot be negative")
	}
	if discount.Amount().GreaterThan(o.Subtotal.Add(o.TaxAmount)) {
		return shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot exceed order total")
	}
	o.DiscountAmount = discount.Amount()
	o.recalculateTotals()
	o.UpdatedAt = time.Now()
	return nil
}

// ApplyTax sets the order-level tax amount. Only allowed while PENDING.
func (o *Order) ApplyTax(tax valueobject.Money) error {
	if o.Status != OrderStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Cannot apply tax to a non-pending order")
	}
	if tax.Amount().IsNegative() {
		return shared.NewDomainError("INVALID_TAX", "Tax cannot be negative")
	}
	o.TaxAmount = tax.Amount()
	o.recalculateTotals()
	o.UpdatedAt = time.Now()
	return nil
}

// RecordPayment records the amount received and derives the payment status
func (o *Order) RecordPayment(received valueobject.Money) error {
	if received.Amount().IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount received cannot be negative")
	}
	o.AmountReceived = received.Amount()
	switch {
	case o.AmountReceived.IsZero():
		o.PaymentStatus = PaymentStatusUnpaid
	case o.AmountReceived.GreaterThanOrEqual(o.TotalAmount):
		o.PaymentStatus = PaymentStatusPaid
	default:
		o.PaymentStatus = PaymentStatusPartial
	}
	o.UpdatedAt = time.Now()
	return nil
}

// Complete marks the order as committed. Requires at least one line.
func (o *Order) Complete() error {
	if !o.Status.CanTransitionTo(OrderStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete order in %s status", o.Status))
	}
	if len(o.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot complete order without lines")
	}
	now := time.Now()
	o.Status = OrderStatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// Cancel cancels the order
func (o *Order) Cancel(reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.UpdatedAt = now
	return nil
}

// SetCustomerRef sets an optional customer reference
func (o *Order) SetCustomerRef(ref string) {
	o.CustomerRef = ref
	o.UpdatedAt = time.Now()
}

// SetRemark sets the order remark
func (o *Order) SetRemark(remark string) {
	o.Remark = remark
	o.UpdatedAt = time.Now()
}

// recalculateTotals recalculates subtotal and total from top-level lines.
// Component lines carry zero price and are excluded.
func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for _, line := range o.Lines {
		if line.IsComponent() {
			continue
		}
		subtotal = subtotal.Add(line.TotalPrice)
	}
	o.Subtotal = subtotal
	o.TotalAmount = o.Subtotal.Add(o.TaxAmount).Sub(o.DiscountAmount)
	if o.TotalAmount.IsNegative() {
		o.DiscountAmount = o.Subtotal.Add(o.TaxAmount)
		o.TotalAmount = decimal.Zero
	}
}

// GetTotalAmountMoney returns the order total as Money
func (o *Order) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyPHP(o.TotalAmount)
}

// GetLine returns a line by its ID
func (o *Order) GetLine(lineID uuid.UUID) *OrderLine {
	for idx := range o.Lines {
		if o.Lines[idx].ID == lineID {
			return &o.Lines[idx]
		}
	}
	return nil
}

// TopLevelLines returns the lines that are not combo components
func (o *Order) TopLevelLines() []OrderLine {
	lines := make([]OrderLine, 0, len(o.Lines))
	for _, line := range o.Lines {
		if !line.IsComponent() {
			lines = append(lines, line)
		}
	}
	return lines
}

// ComponentsOf returns the component lines attached to a combo line
func (o *Order) ComponentsOf(parentLineID uuid.UUID) []OrderLine {
	components := make([]OrderLine, 0)
	for _, line := range o.Lines {
		if line.ParentLineID != nil && *line.ParentLineID == parentLineID {
			components = append(components, line)
		}
	}
	return components
}

// IsFullyPaid returns true if the received amount covers the total
func (o *Order) IsFullyPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// IsCompleted returns true if the order is completed
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// IsTerminal returns true if the order is in a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

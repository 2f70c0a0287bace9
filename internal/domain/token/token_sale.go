package token

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
)

// TokenSale joins a sold token to the order that bought it. A token is never
// referenced by two sales; the unique token_id constraint backs this up.
type TokenSale struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	TokenID       uuid.UUID `gorm:"uniqueIndex"`
	OrderID       uuid.UUID
	OrderLineID   uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
	SellerID      *uuid.UUID
	SoldAt        time.Time
}

// NewTokenSale creates a sale record for a verified token
func NewTokenSale(tenantID, tokenID, orderID, orderLineID uuid.UUID, amount decimal.Decimal, paymentMethod string) (*TokenSale, error) {
	if tokenID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOKEN", "Token ID cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Sale amount cannot be negative")
	}
	return &TokenSale{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		TokenID:       tokenID,
		OrderID:       orderID,
		OrderLineID:   orderLineID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		SoldAt:        time.Now(),
	}, nil
}

// WithSeller records the user who made the sale
func (s *TokenSale) WithSeller(sellerID uuid.UUID) *TokenSale {
	s.SellerID = &sellerID
	return s
}

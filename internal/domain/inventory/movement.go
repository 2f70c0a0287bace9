package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
)

// MovementType classifies an inventory movement
type MovementType string

const (
	MovementTypeSale     MovementType = "SALE"
	MovementTypeReversal MovementType = "REVERSAL"
	MovementTypeReceive  MovementType = "RECEIVE"
	MovementTypeAdjust   MovementType = "ADJUST"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// Movement is an append-only record of one stock change, kept for audit
type Movement struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	VariantID uuid.UUID
	Type      MovementType
	Quantity  decimal.Decimal // positive; direction comes from the type
	OrderID   *uuid.UUID
	Remark    string
	MovedAt   time.Time
}

// NewMovement creates an inventory movement record
func NewMovement(tenantID, variantID uuid.UUID, movType MovementType, qty decimal.Decimal) (*Movement, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Movement quantity must be positive")
	}
	return &Movement{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		VariantID:  variantID,
		Type:       movType,
		Quantity:   qty,
		MovedAt:    time.Now(),
	}, nil
}

// WithOrder links the movement to the order that caused it
func (m *Movement) WithOrder(orderID uuid.UUID) *Movement {
	m.OrderID = &orderID
	return m
}

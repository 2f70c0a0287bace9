package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
)

// InventoryItem tracks on-hand stock for one product variant.
// Concurrent decrements are serialized with optimistic locking.
type InventoryItem struct {
	shared.TenantAggregateRoot
	VariantID uuid.UUID `gorm:"type:uuid;not null;index"`
	OnHand    decimal.Decimal
}

// NewInventoryItem creates an inventory record for a variant
func NewInventoryItem(tenantID, variantID uuid.UUID, onHand decimal.Decimal) (*InventoryItem, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if onHand.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "On-hand quantity cannot be negative")
	}
	return &InventoryItem{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		OnHand:              onHand,
	}, nil
}

// Decrement removes stock for a sale
func (i *InventoryItem) Decrement(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Decrement quantity must be positive")
	}
	if i.OnHand.LessThan(qty) {
		return shared.ErrInsufficientStock
	}
	i.OnHand = i.OnHand.Sub(qty)
	i.IncrementVersion()
	i.UpdatedAt = time.Now()
	return nil
}

// Increment restores stock, used when a sale's decrement is rolled back
func (i *InventoryItem) Increment(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Increment quantity must be positive")
	}
	i.OnHand = i.OnHand.Add(qty)
	i.IncrementVersion()
	i.UpdatedAt = time.Now()
	return nil
}

package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
)

// Variant is a sellable product variant resolved during reservation.
// A missing variant is a soft failure: the line is kept with provenance
// metadata and a warning instead of failing the order.
type Variant struct {
	shared.TenantAggregateRoot
	ProductID uuid.UUID
	SKU       string
	Name      string
	Price     decimal.Decimal
	Active    bool
}

// NewVariant creates a sellable variant
func NewVariant(tenantID, productID uuid.UUID, sku, name string, price decimal.Decimal) (*Variant, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Variant name cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	return &Variant{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		SKU:                 sku,
		Name:                name,
		Price:               price,
		Active:              true,
	}, nil
}

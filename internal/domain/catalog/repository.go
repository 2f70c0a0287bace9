package catalog

import (
	"context"

	"github.com/google/uuid"
)

// VariantRepository resolves sellable variants for order lines
type VariantRepository interface {
	Save(ctx context.Context, variant *Variant) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Variant, error)
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*Variant, error)
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]Variant, error)
}

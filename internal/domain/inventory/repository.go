package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository persists inventory items.
// SaveWithLock enforces optimistic concurrency via the aggregate version.
type ItemRepository interface {
	Save(ctx context.Context, item *InventoryItem) error
	SaveWithLock(ctx context.Context, item *InventoryItem) error
	FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*InventoryItem, error)
}

// MovementRepository persists audit movements
type MovementRepository interface {
	Save(ctx context.Context, movement *Movement) error
	FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]Movement, error)
}

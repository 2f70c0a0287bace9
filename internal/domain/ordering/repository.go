package ordering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/shared"
)

// OrderRepository persists orders and their lines.
// Save returns shared.ErrOrderNumberConflict when the (tenant, order number)
// pair collides with an existing row, so the allocator can regenerate.
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	SaveWithLock(ctx context.Context, order *Order) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*Order, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Order, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// CountCreatedSince counts orders created at or after the given instant,
	// used to seed the daily order-number sequence.
	CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error)

	// DeleteWithLines removes the order's lines and then the order itself,
	// children before parent. Used by the commit protocol's rollback.
	DeleteWithLines(ctx context.Context, tenantID, orderID uuid.UUID) error
}

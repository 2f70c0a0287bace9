package token

import (
	"context"

	"github.com/google/uuid"
)

// TokenRepository persists reservable tokens.
//
// ClaimOldestAvailable is the reservation primitive: a single storage
// operation that selects the oldest AVAILABLE tokens for a config and marks
// them RESERVED for an order, under a row lock. Two concurrent orders can
// never claim the same token. It may return fewer tokens than requested;
// the caller decides whether that is fatal.
type TokenRepository interface {
	Save(ctx context.Context, tok *ReservableToken) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ReservableToken, error)
	CountAvailable(ctx context.Context, tenantID, configID uuid.UUID) (int64, error)

	ClaimOldestAvailable(ctx context.Context, tenantID, configID, orderID uuid.UUID, quantity int) ([]ReservableToken, error)

	// ReleaseClaim returns still-RESERVED tokens to the AVAILABLE pool.
	// Tokens that moved on (SOLD, DISABLED) are left alone.
	ReleaseClaim(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error

	// MarkSold transitions RESERVED tokens to SOLD
	MarkSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error

	// RevertSold returns SOLD tokens to AVAILABLE during rollback
	RevertSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error

	// Disable marks a token unsellable after failed device verification.
	// Never undone by rollback.
	Disable(ctx context.Context, tenantID, tokenID uuid.UUID, note string) error

	// Invalidate withdraws an on-demand token whose sale was rolled back
	Invalidate(ctx context.Context, tenantID, tokenID uuid.UUID) error
}

// TokenConfigRepository persists token configurations
type TokenConfigRepository interface {
	Save(ctx context.Context, cfg *TokenConfig) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*TokenConfig, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]TokenConfig, error)
}

// TokenSaleRepository persists token sale records
type TokenSaleRepository interface {
	Save(ctx context.Context, sale *TokenSale) error
	FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]TokenSale, error)
	DeleteByOrder(ctx context.Context, tenantID, orderID uuid.UUID) error
}

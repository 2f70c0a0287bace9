package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/token"
)

// GormTokenSaleRepository implements TokenSaleRepository using GORM
type GormTokenSaleRepository struct {
	db *gorm.DB
}

// NewGormTokenSaleRepository creates a new GormTokenSaleRepository
func NewGormTokenSaleRepository(db *gorm.DB) *GormTokenSaleRepository {
	return &GormTokenSaleRepository{db: db}
}

// Save inserts a token sale. The unique token_id index rejects a second
// sale of the same token.
func (r *GormTokenSaleRepository) Save(ctx context.Context, sale *token.TokenSale) error {
	err := r.db.WithContext(ctx).Create(sale).Error
	if err != nil && isUniqueViolation(err, "") {
		return shared.ErrTokenAlreadyReserved
	}
	return err
}

// FindByOrder returns the token sales recorded for an order
func (r *GormTokenSaleRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]token.TokenSale, error) {
	var sales []token.TokenSale
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("sold_at ASC").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// DeleteByOrder removes all token sales for an order, used by rollback
func (r *GormTokenSaleRepository) DeleteByOrder(ctx context.Context, tenantID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Delete(&token.TokenSale{}).Error
}

// Ensure GormTokenSaleRepository implements TokenSaleRepository
var _ token.TokenSaleRepository = (*GormTokenSaleRepository)(nil)

package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venda/backend/internal/domain/inventory"
	"github.com/venda/backend/internal/domain/shared"
)

// GormInventoryItemRepository implements ItemRepository using GORM
type GormInventoryItemRepository struct {
	db *gorm.DB
}

// NewGormInventoryItemRepository creates a new GormInventoryItemRepository
func NewGormInventoryItemRepository(db *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: db}
}

// Save inserts or updates an inventory item
func (r *GormInventoryItemRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// SaveWithLock updates an inventory item with optimistic locking
func (r *GormInventoryItemRepository) SaveWithLock(ctx context.Context, item *inventory.InventoryItem) error {
	result := r.db.WithContext(ctx).
		Model(item).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"on_hand":    item.OnHand,
			"version":    item.Version,
			"updated_at": item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByVariant finds the inventory record for a variant within a tenant
func (r *GormInventoryItemRepository) FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*inventory.InventoryItem, error) {
	var item inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ?", tenantID, variantID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Ensure GormInventoryItemRepository implements ItemRepository
var _ inventory.ItemRepository = (*GormInventoryItemRepository)(nil)

// GormMovementRepository implements MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Save inserts a movement record
func (r *GormMovementRepository) Save(ctx context.Context, movement *inventory.Movement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindByOrder returns the movements recorded for an order
func (r *GormMovementRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]inventory.Movement, error) {
	var movements []inventory.Movement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("moved_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)

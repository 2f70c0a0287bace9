package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venda/backend/internal/domain/catalog"
	"github.com/venda/backend/internal/domain/shared"
)

// GormVariantRepository implements VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// Save inserts or updates a variant
func (r *GormVariantRepository) Save(ctx context.Context, variant *catalog.Variant) error {
	return r.db.WithContext(ctx).Save(variant).Error
}

// FindByIDForTenant finds a variant by ID within a tenant
func (r *GormVariantRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Variant, error) {
	var variant catalog.Variant
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// FindBySKU finds a variant by SKU within a tenant
func (r *GormVariantRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*catalog.Variant, error) {
	var variant catalog.Variant
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// FindByProduct returns all variants of a product within a tenant
func (r *GormVariantRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]catalog.Variant, error) {
	var variants []catalog.Variant
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// Ensure GormVariantRepository implements VariantRepository
var _ catalog.VariantRepository = (*GormVariantRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venda/backend/internal/domain/ordering"
	"github.com/venda/backend/internal/domain/shared"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save inserts the order and its lines. A collision on the tenant+number
// unique index maps to ErrOrderNumberConflict so the allocator can retry.
func (r *GormOrderRepository) Save(ctx context.Context, order *ordering.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		if isUniqueViolation(err, "idx_orders_tenant_number") {
			return shared.ErrOrderNumberConflict
		}
		return err
	}
	return nil
}

// SaveWithLock updates the order with optimistic locking
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *ordering.Order) error {
	order.IncrementVersion()
	result := r.db.WithContext(ctx).
		Model(order).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Updates(map[string]interface{}{
			"status":          order.Status,
			"payment_status":  order.PaymentStatus,
			"subtotal":        order.Subtotal,
			"tax_amount":      order.TaxAmount,
			"discount_amount": order.DiscountAmount,
			"total_amount":    order.TotalAmount,
			"amount_received": order.AmountReceived,
			"completed_at":    order.CompletedAt,
			"cancelled_at":    order.CancelledAt,
			"cancel_reason":   order.CancelReason,
			"version":         order.Version,
			"updated_at":      order.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByIDForTenant finds an order by ID within a tenant
func (r *GormOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ordering.Order, error) {
	var order ordering.Order
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByNumber finds an order by its order number within a tenant
func (r *GormOrderRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*ordering.Order, error) {
	var order ordering.Order
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindAllForTenant finds orders for a tenant with filtering and pagination
func (r *GormOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ordering.Order, error) {
	var orders []ordering.Order
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ordering.Order{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := query.Preload("Lines").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CountForTenant counts orders for a tenant matching the filter
func (r *GormOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterConditions(
		r.db.WithContext(ctx).Model(&ordering.Order{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountCreatedSince counts orders created at or after the given instant
func (r *GormOrderRepository) CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ordering.Order{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByNumber checks whether an order number is already taken
func (r *GormOrderRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ordering.Order{}).
		Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteWithLines removes the order's lines and then the order itself,
// children before parent
func (r *GormOrderRepository) DeleteWithLines(ctx context.Context, tenantID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).
			Delete(&ordering.OrderLine{}).Error; err != nil {
			return err
		}
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, orderID).
			Delete(&ordering.Order{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *GormOrderRepository) applyFilterConditions(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if start, ok := filter.Filters["start_date"].(time.Time); ok {
		query = query.Where("created_at >= ?", start)
	}
	if end, ok := filter.Filters["end_date"].(time.Time); ok {
		query = query.Where("created_at < ?", end.Add(24*time.Hour))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("order_number ILIKE ? OR customer_ref ILIKE ?", pattern, pattern)
	}
	return query
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterConditions(query, filter)

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	dir := "DESC"
	if filter.OrderDir == "asc" {
		dir = "ASC"
	}
	query = query.Order(orderBy + " " + dir)

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Limit(filter.PageSize).Offset(offset)
	}
	return query
}

// Ensure GormOrderRepository implements OrderRepository
var _ ordering.OrderRepository = (*GormOrderRepository)(nil)

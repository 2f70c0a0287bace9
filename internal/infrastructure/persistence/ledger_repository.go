package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/venda/backend/internal/domain/ledger"
)

// GormLedgerRepository implements TransactionRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append locks the tenant's latest entry, hands its balance to the builder,
// and inserts the built entry, all in one transaction. Concurrent appends
// for the same tenant serialize on the row lock, keeping the
// balance_before/balance_after chain unbroken.
func (r *GormLedgerRepository) Append(ctx context.Context, tenantID uuid.UUID, build func(balanceBefore decimal.Decimal) (*ledger.Transaction, error)) (*ledger.Transaction, error) {
	var created *ledger.Transaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balanceBefore, err := latestBalanceLocked(tx, tenantID)
		if err != nil {
			return err
		}

		entry, err := build(balanceBefore)
		if err != nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		created = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// LatestBalance returns the tenant's current running balance
func (r *GormLedgerRepository) LatestBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var last ledger.Transaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("posted_at DESC, created_at DESC").
		First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return last.BalanceAfter, nil
}

// FindByOrder returns the ledger entries linked to an order
func (r *GormLedgerRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("posted_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByPeriod returns ledger entries posted within a time window
func (r *GormLedgerRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit, offset int) ([]ledger.Transaction, int64, error) {
	base := r.db.WithContext(ctx).Model(&ledger.Transaction{}).
		Where("tenant_id = ? AND posted_at >= ? AND posted_at < ?", tenantID, from, to)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []ledger.Transaction
	if err := base.
		Order("posted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func latestBalanceLocked(tx *gorm.DB, tenantID uuid.UUID) (decimal.Decimal, error) {
	var last ledger.Transaction
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		Order("posted_at DESC, created_at DESC").
		First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return last.BalanceAfter, nil
}

// Ensure GormLedgerRepository implements TransactionRepository
var _ ledger.TransactionRepository = (*GormLedgerRepository)(nil)

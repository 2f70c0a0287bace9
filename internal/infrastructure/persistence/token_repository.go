package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/token"
)

// GormTokenRepository implements TokenRepository using GORM
type GormTokenRepository struct {
	db *gorm.DB
}

// NewGormTokenRepository creates a new GormTokenRepository
func NewGormTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

// Save inserts or updates a token
func (r *GormTokenRepository) Save(ctx context.Context, tok *token.ReservableToken) error {
	err := r.db.WithContext(ctx).Save(tok).Error
	if err != nil && isUniqueViolation(err, "idx_tokens_tenant_code") {
		return shared.ErrAlreadyExists
	}
	return err
}

// FindByIDForTenant finds a token by ID within a tenant
func (r *GormTokenRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*token.ReservableToken, error) {
	var tok token.ReservableToken
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&tok).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

// CountAvailable counts AVAILABLE tokens for a config
func (r *GormTokenRepository) CountAvailable(ctx context.Context, tenantID, configID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND config_id = ? AND status = ?",
			tenantID, configID, token.TokenStatusAvailable).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ClaimOldestAvailable atomically marks up to quantity AVAILABLE tokens as
// RESERVED for an order. SELECT ... FOR UPDATE SKIP LOCKED means two
// concurrent claims select disjoint rows instead of blocking or double
// claiming. May return fewer tokens than requested.
func (r *GormTokenRepository) ClaimOldestAvailable(ctx context.Context, tenantID, configID, orderID uuid.UUID, quantity int) ([]token.ReservableToken, error) {
	var claimed []token.ReservableToken

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []token.ReservableToken
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("tenant_id = ? AND config_id = ? AND status = ?",
				tenantID, configID, token.TokenStatusAvailable).
			Order("created_at ASC").
			Limit(quantity).
			Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(candidates))
		for i := range candidates {
			ids = append(ids, candidates[i].ID)
		}

		now := time.Now()
		if err := tx.Model(&token.ReservableToken{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":      token.TokenStatusReserved,
				"reserved_by": orderID,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}

		for i := range candidates {
			candidates[i].Status = token.TokenStatusReserved
			reservedBy := orderID
			candidates[i].ReservedBy = &reservedBy
			candidates[i].UpdatedAt = now
		}
		claimed = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReleaseClaim returns still-RESERVED tokens to the AVAILABLE pool.
// Tokens that moved on (SOLD, DISABLED) are left alone.
func (r *GormTokenRepository) ReleaseClaim(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND id IN ? AND status = ?",
			tenantID, tokenIDs, token.TokenStatusReserved).
		Updates(map[string]interface{}{
			"status":      token.TokenStatusAvailable,
			"reserved_by": nil,
			"updated_at":  time.Now(),
		}).Error
}

// MarkSold transitions RESERVED tokens to SOLD
func (r *GormTokenRepository) MarkSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND id IN ? AND status = ?",
			tenantID, tokenIDs, token.TokenStatusReserved).
		Updates(map[string]interface{}{
			"status":      token.TokenStatusSold,
			"reserved_by": nil,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(tokenIDs)) {
		return shared.NewDomainError("INVALID_STATE", "Some tokens were no longer reserved at sale time")
	}
	return nil
}

// RevertSold returns SOLD tokens to AVAILABLE during rollback
func (r *GormTokenRepository) RevertSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND id IN ? AND status = ?",
			tenantID, tokenIDs, token.TokenStatusSold).
		Updates(map[string]interface{}{
			"status":     token.TokenStatusAvailable,
			"updated_at": time.Now(),
		}).Error
}

// Disable marks a token unsellable after failed device verification
func (r *GormTokenRepository) Disable(ctx context.Context, tenantID, tokenID uuid.UUID, note string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND id = ? AND status IN ?",
			tenantID, tokenID, []token.TokenStatus{token.TokenStatusAvailable, token.TokenStatusReserved}).
		Updates(map[string]interface{}{
			"status":       token.TokenStatusDisabled,
			"disabled_at":  now,
			"disable_note": note,
			"reserved_by":  nil,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Invalidate withdraws a SOLD token whose sale was rolled back
func (r *GormTokenRepository) Invalidate(ctx context.Context, tenantID, tokenID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&token.ReservableToken{}).
		Where("tenant_id = ? AND id = ? AND status = ?",
			tenantID, tokenID, token.TokenStatusSold).
		Updates(map[string]interface{}{
			"status":     token.TokenStatusInvalidated,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormTokenRepository implements TokenRepository
var _ token.TokenRepository = (*GormTokenRepository)(nil)

// GormTokenConfigRepository implements TokenConfigRepository using GORM
type GormTokenConfigRepository struct {
	db *gorm.DB
}

// NewGormTokenConfigRepository creates a new GormTokenConfigRepository
func NewGormTokenConfigRepository(db *gorm.DB) *GormTokenConfigRepository {
	return &GormTokenConfigRepository{db: db}
}

// Save inserts or updates a token configuration
func (r *GormTokenConfigRepository) Save(ctx context.Context, cfg *token.TokenConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

// FindByIDForTenant finds a token configuration by ID within a tenant
func (r *GormTokenConfigRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*token.TokenConfig, error) {
	var cfg token.TokenConfig
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// FindAllForTenant returns all token configurations for a tenant
func (r *GormTokenConfigRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]token.TokenConfig, error) {
	var configs []token.TokenConfig
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Ensure GormTokenConfigRepository implements TokenConfigRepository
var _ token.TokenConfigRepository = (*GormTokenConfigRepository)(nil)

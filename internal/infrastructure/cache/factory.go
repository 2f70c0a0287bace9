package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/infrastructure/config"
)

// NewIdempotencyGuard creates the idempotency guard selected by configuration.
// The redis backend falls back to in-memory when Redis is unreachable:
// a kiosk that cannot dedupe retries is still better than one that cannot sell.
func NewIdempotencyGuard(cfg *config.Config, logger *zap.Logger) (shared.IdempotencyGuard, error) {
	switch cfg.Idempotency.Backend {
	case "memory":
		return NewInMemoryIdempotencyStore(), nil
	case "redis":
		store, err := NewRedisIdempotencyStore(RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
				"Retried submissions may be re-executed across instances.",
				zap.Error(err))
			return NewInMemoryIdempotencyStore(), nil
		}
		logger.Info("using Redis idempotency store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Idempotency.Backend)
	}
}

package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/token"
)

// PoolService manages token configurations and the pre-provisioned pool
type PoolService struct {
	configRepo token.TokenConfigRepository
	tokenRepo  token.TokenRepository
	logger     *zap.Logger
}

// NewPoolService creates a new PoolService
func NewPoolService(configRepo token.TokenConfigRepository, tokenRepo token.TokenRepository, logger *zap.Logger) *PoolService {
	return &PoolService{
		configRepo: configRepo,
		tokenRepo:  tokenRepo,
		logger:     logger,
	}
}

// CreateConfig creates a sellable token profile
func (s *PoolService) CreateConfig(ctx context.Context, tenantID uuid.UUID, req CreateConfigRequest) (*ConfigResponse, error) {
	cfg, err := token.NewTokenConfig(tenantID, req.Name, req.DurationMinutes, req.DeviceLimit, req.NetworkName)
	if err != nil {
		return nil, err
	}
	cfg.DownKbps = req.DownKbps
	cfg.UpKbps = req.UpKbps

	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	resp := ToConfigResponse(cfg)
	return &resp, nil
}

// ListConfigs returns all token profiles for a tenant
func (s *PoolService) ListConfigs(ctx context.Context, tenantID uuid.UUID) ([]ConfigResponse, error) {
	configs, err := s.configRepo.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	responses := make([]ConfigResponse, 0, len(configs))
	for idx := range configs {
		responses = append(responses, ToConfigResponse(&configs[idx]))
	}
	return responses, nil
}

// Provision loads a batch of pre-generated credentials into the pool.
// Individually bad credentials are skipped and reported, not fatal.
func (s *PoolService) Provision(ctx context.Context, tenantID uuid.UUID, req ProvisionTokensRequest) (*ProvisionResult, error) {
	cfg, err := s.configRepo.FindByIDForTenant(ctx, tenantID, req.ConfigID)
	if err != nil {
		return nil, err
	}

	result := &ProvisionResult{}
	for _, cred := range req.Tokens {
		tok, err := token.NewReservableToken(tenantID, cfg.ID, cred.Code, cred.Username, cred.Password)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", cred.Code, err))
			continue
		}
		if err := s.tokenRepo.Save(ctx, tok); err != nil {
			s.logger.Warn("token not provisioned",
				zap.String("token_code", cred.Code),
				zap.Error(err))
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", cred.Code, err))
			continue
		}
		result.Provisioned++
	}
	return result, nil
}

// PoolStatus reports how many tokens are available for a config
func (s *PoolService) PoolStatus(ctx context.Context, tenantID, configID uuid.UUID) (*PoolStatusResponse, error) {
	cfg, err := s.configRepo.FindByIDForTenant(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	available, err := s.tokenRepo.CountAvailable(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	return &PoolStatusResponse{
		ConfigID:   cfg.ID,
		ConfigName: cfg.Name,
		Available:  available,
	}, nil
}

// DisableToken marks a token unsellable, for manual pool maintenance
func (s *PoolService) DisableToken(ctx context.Context, tenantID, tokenID uuid.UUID, note string) error {
	return s.tokenRepo.Disable(ctx, tenantID, tokenID, note)
}

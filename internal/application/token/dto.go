package token

import (
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/token"
)

// CreateConfigRequest defines a sellable token profile
type CreateConfigRequest struct {
	Name            string `json:"name" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	DeviceLimit     int    `json:"device_limit" binding:"required,gt=0"`
	DownKbps        int    `json:"down_kbps"`
	UpKbps          int    `json:"up_kbps"`
	NetworkName     string `json:"network_name" binding:"required"`
}

// ConfigResponse is the read-side view of a token configuration
type ConfigResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	DeviceLimit     int       `json:"device_limit"`
	DownKbps        int       `json:"down_kbps"`
	UpKbps          int       `json:"up_kbps"`
	NetworkName     string    `json:"network_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProvisionTokensRequest loads a batch of pre-generated credentials into
// the AVAILABLE pool
type ProvisionTokensRequest struct {
	ConfigID uuid.UUID             `json:"config_id" binding:"required"`
	Tokens   []ProvisionCredential `json:"tokens" binding:"required,min=1,dive"`
}

// ProvisionCredential is one credential to load
type ProvisionCredential struct {
	Code     string `json:"code" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProvisionResult reports how many tokens entered the pool
type ProvisionResult struct {
	Provisioned int      `json:"provisioned"`
	Skipped     []string `json:"skipped,omitempty"`
}

// PoolStatusResponse reports availability for one config
type PoolStatusResponse struct {
	ConfigID   uuid.UUID `json:"config_id"`
	ConfigName string    `json:"config_name"`
	Available  int64     `json:"available"`
}

// ToConfigResponse maps a token config to its response form
func ToConfigResponse(cfg *token.TokenConfig) ConfigResponse {
	return ConfigResponse{
		ID:              cfg.ID,
		Name:            cfg.Name,
		DurationMinutes: cfg.DurationMinutes,
		DeviceLimit:     cfg.DeviceLimit,
		DownKbps:        cfg.DownKbps,
		UpKbps:          cfg.UpKbps,
		NetworkName:     cfg.NetworkName,
		CreatedAt:       cfg.CreatedAt,
	}
}

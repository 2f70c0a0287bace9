package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/shared"
)

// TokenStatus represents the lifecycle state of a reservable token
type TokenStatus string

const (
	// TokenStatusAvailable means the token is in the pool and can be claimed
	TokenStatusAvailable TokenStatus = "AVAILABLE"
	// TokenStatusReserved means the token is claimed by an in-flight order
	TokenStatusReserved TokenStatus = "RESERVED"
	// TokenStatusSold means the token has been sold exactly once
	TokenStatusSold TokenStatus = "SOLD"
	// TokenStatusDisabled means device verification failed; never sellable again
	TokenStatusDisabled TokenStatus = "DISABLED"
	// TokenStatusExpired means the credential's validity window has passed
	TokenStatusExpired TokenStatus = "EXPIRED"
	// TokenStatusInvalidated means the token was withdrawn after an aborted sale
	TokenStatusInvalidated TokenStatus = "INVALIDATED"
)

// IsValid checks if the status is a valid TokenStatus
func (s TokenStatus) IsValid() bool {
	switch s {
	case TokenStatusAvailable, TokenStatusReserved, TokenStatusSold,
		TokenStatusDisabled, TokenStatusExpired, TokenStatusInvalidated:
		return true
	}
	return false
}

// String returns the string representation of TokenStatus
func (s TokenStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s TokenStatus) CanTransitionTo(target TokenStatus) bool {
	switch s {
	case TokenStatusAvailable:
		return target == TokenStatusReserved || target == TokenStatusDisabled || target == TokenStatusExpired
	case TokenStatusReserved:
		return target == TokenStatusSold || target == TokenStatusAvailable || target == TokenStatusDisabled
	case TokenStatusSold:
		return target == TokenStatusAvailable || target == TokenStatusInvalidated
	case TokenStatusDisabled, TokenStatusExpired, TokenStatusInvalidated:
		return false // Terminal states
	}
	return false
}

// TokenConfig describes a sellable token profile: how long the credential
// lasts and how many devices it admits.
type TokenConfig struct {
	shared.TenantAggregateRoot
	Name            string
	DurationMinutes int
	DeviceLimit     int
	DownKbps        int
	UpKbps          int
	NetworkName     string
}

// NewTokenConfig creates a new token configuration
func NewTokenConfig(tenantID uuid.UUID, name string, durationMinutes, deviceLimit int, networkName string) (*TokenConfig, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CONFIG_NAME", "Config name cannot be empty")
	}
	if durationMinutes <= 0 {
		return nil, shared.NewDomainError("INVALID_DURATION", "Duration must be positive")
	}
	if deviceLimit <= 0 {
		return nil, shared.NewDomainError("INVALID_DEVICE_LIMIT", "Device limit must be positive")
	}
	if networkName == "" {
		return nil, shared.NewDomainError("INVALID_NETWORK", "Network name cannot be empty")
	}
	return &TokenConfig{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		DurationMinutes:     durationMinutes,
		DeviceLimit:         deviceLimit,
		NetworkName:         networkName,
	}, nil
}

// ReservableToken is a finite, uniquely redeemable network-access credential.
// It transitions to SOLD exactly once and is never referenced by two sales.
type ReservableToken struct {
	shared.TenantAggregateRoot
	ConfigID   uuid.UUID
	Code       string // device-side token identifier
	Username   string
	Password   string
	Status     TokenStatus
	ReservedBy *uuid.UUID // order ID holding the claim while RESERVED
	ExpiresAt  *time.Time
	DisabledAt *time.Time
	DisableNote string
}

// NewReservableToken creates a token in the AVAILABLE pool
func NewReservableToken(tenantID, configID uuid.UUID, code, username, password string) (*ReservableToken, error) {
	if configID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOKEN_CONFIG", "Config ID cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_TOKEN_CODE", "Token code cannot be empty")
	}
	return &ReservableToken{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConfigID:            configID,
		Code:                code,
		Username:            username,
		Password:            password,
		Status:              TokenStatusAvailable,
	}, nil
}

// NewSoldToken creates a token that was generated on the device at sale time.
// It enters the pool as SOLD: there is no AVAILABLE window for on-demand tokens.
func NewSoldToken(tenantID, configID uuid.UUID, code, username, password string, expiresAt *time.Time) (*ReservableToken, error) {
	tok, err := NewReservableToken(tenantID, configID, code, username, password)
	if err != nil {
		return nil, err
	}
	tok.Status = TokenStatusSold
	tok.ExpiresAt = expiresAt
	return tok, nil
}

// MarkSold transitions the token to SOLD
func (t *ReservableToken) MarkSold() error {
	if !t.Status.CanTransitionTo(TokenStatusSold) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot sell token in %s status", t.Status))
	}
	t.Status = TokenStatusSold
	t.ReservedBy = nil
	t.UpdatedAt = time.Now()
	return nil
}

// Disable marks the token as unsellable. This reflects device ground truth
// and is never undone by order rollback.
func (t *ReservableToken) Disable(note string) error {
	if !t.Status.CanTransitionTo(TokenStatusDisabled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot disable token in %s status", t.Status))
	}
	now := time.Now()
	t.Status = TokenStatusDisabled
	t.DisabledAt = &now
	t.DisableNote = note
	t.ReservedBy = nil
	t.UpdatedAt = now
	return nil
}

// Invalidate withdraws a sold token after its sale was rolled back.
// The credential may still exist on the device, so it never returns to the pool.
func (t *ReservableToken) Invalidate() error {
	if !t.Status.CanTransitionTo(TokenStatusInvalidated) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot invalidate token in %s status", t.Status))
	}
	t.Status = TokenStatusInvalidated
	t.ReservedBy = nil
	t.UpdatedAt = time.Now()
	return nil
}

// IsSellable returns true if the token can still be claimed for sale
func (t *ReservableToken) IsSellable() bool {
	return t.Status == TokenStatusAvailable
}

// MaskedPassword returns a receipt-safe rendering of the credential
func (t *ReservableToken) MaskedPassword() string {
	if len(t.Password) <= 2 {
		return "****"
	}
	return t.Password[:2] + "****"
}

package token

import (
	"context"
	"time"
)

// VerifyResult is the outcome of checking a token against the physical device.
// Unreachable and not-found both fail closed; Reason preserves the distinction
// for operator diagnosis.
type VerifyResult struct {
	Exists     bool
	Reason     string
	StatusCode int
}

// CredentialRequest asks the device for a new guest credential
type CredentialRequest struct {
	NetworkName     string
	DurationMinutes int
	DeviceLimit     int
}

// GeneratedCredential is a device-issued guest credential
type GeneratedCredential struct {
	Code      string
	Username  string
	Password  string
	ExpiresAt *time.Time
}

// DeviceGateway talks to the wireless access point that actually redeems
// tokens. A token sold to a customer must be redeemable later, so existence
// on the device is a precondition of every pre-provisioned sale.
type DeviceGateway interface {
	// VerifyToken confirms a token code still exists on the device
	VerifyToken(ctx context.Context, code string) (*VerifyResult, error)

	// GenerateCredential creates a guest credential on the device
	GenerateCredential(ctx context.Context, req CredentialRequest) (*GeneratedCredential, error)
}

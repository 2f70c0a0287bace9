package shared

import (
	"context"
	"time"
)

// IdempotencyGuard deduplicates retried client submissions by a client-supplied key.
// A second request bearing the same key within the guard's lifetime returns the
// stored response payload unchanged instead of re-executing side effects.
//
// Check doubles as the claim: an unseen key is marked in-flight before Check
// returns a miss, so a concurrent request with the same key blocks inside
// Check until the first caller either Stores a response (replayed to the
// waiter) or Releases the claim (the waiter claims in turn).
type IdempotencyGuard interface {
	// Check returns the stored response payload for a key, if one exists.
	// A miss claims the key for the caller; the caller must follow up with
	// either Store or Release.
	Check(ctx context.Context, key string) ([]byte, bool, error)

	// Store records the response payload for a key with a TTL, completing
	// the caller's claim. Storage failure is non-fatal: callers log and
	// swallow it.
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Release abandons an in-flight claim without storing a response,
	// letting a waiting request with the same key proceed.
	Release(ctx context.Context, key string) error

	// Close closes the guard and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for stored responses.
	// After this duration, the same key is treated as a new request.
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

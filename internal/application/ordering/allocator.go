package ordering

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/ordering"
)

const (
	defaultOrderPrefix = "ORD"
	maxAllocAttempts   = 5
)

// OrderNumberAllocator produces human-readable daily-sequenced order numbers
// of the form PREFIX-YYYYMMDD-NNNN. The sequence is seeded from the count of
// orders created since local midnight; collisions with concurrent commits are
// resolved by the unique (tenant, number) constraint at insert time, so the
// allocator only needs candidates, not guarantees.
type OrderNumberAllocator struct {
	orderRepo ordering.OrderRepository
	prefix    string
	location  *time.Location
	now       func() time.Time
}

// NewOrderNumberAllocator creates an allocator with the given number prefix.
// An empty prefix falls back to "ORD".
func NewOrderNumberAllocator(orderRepo ordering.OrderRepository, prefix string, location *time.Location) *OrderNumberAllocator {
	if prefix == "" {
		prefix = defaultOrderPrefix
	}
	if location == nil {
		location = time.Local
	}
	return &OrderNumberAllocator{
		orderRepo: orderRepo,
		prefix:    prefix,
		location:  location,
		now:       time.Now,
	}
}

// Next computes the next candidate number for the tenant. Attempt 0 uses the
// seeded daily sequence; later attempts advance the sequence past numbers
// that lost the insert race.
func (a *OrderNumberAllocator) Next(ctx context.Context, tenantID uuid.UUID, attempt int) (string, error) {
	if attempt >= maxAllocAttempts {
		return a.fallback(), nil
	}

	now := a.now().In(a.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.location)

	count, err := a.orderRepo.CountCreatedSince(ctx, tenantID, midnight)
	if err != nil {
		return "", err
	}

	seq := count + 1 + int64(attempt)
	return fmt.Sprintf("%s-%s-%04d", a.prefix, now.Format("20060102"), seq), nil
}

// MaxAttempts returns how many sequenced candidates are tried before
// falling back to a random suffix.
func (a *OrderNumberAllocator) MaxAttempts() int {
	return maxAllocAttempts
}

// fallback produces a number that cannot collide with the daily sequence.
// Used after the retry budget is spent under heavy contention.
func (a *OrderNumberAllocator) fallback() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the host is broken; uuid still works
		return fmt.Sprintf("%s-%s-%s", a.prefix, a.now().In(a.location).Format("20060102"), uuid.New().String()[:8])
	}
	return fmt.Sprintf("%s-%s-R%s", a.prefix, a.now().In(a.location).Format("20060102"), hex.EncodeToString(buf))
}

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/venda/backend/internal/domain/shared"
)

// pendingMarker flags a key claimed by an in-flight request. The NUL prefix
// cannot collide with a stored payload, which is always JSON.
var pendingMarker = []byte("\x00pending")

const (
	// pendingTTL bounds how long a crashed claimer can block retries
	pendingTTL = 30 * time.Second

	// pendingPollInterval is how often a waiter re-reads a claimed key
	pendingPollInterval = 50 * time.Millisecond
)

// RedisIdempotencyStore implements IdempotencyGuard using Redis.
// Suitable for distributed deployments where multiple instances need to
// share idempotency state.
//
// Claims are a SETNX pending marker; waiters poll the key until the claimer
// stores a payload or releases.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "order:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis
// client, useful for testing or when sharing a client across components
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "order:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Check returns the stored response payload for a key, if one exists.
// An unseen key is claimed with a pending marker and reported as a miss;
// when another request holds the claim, Check polls until that request
// stores a payload (returned here) or releases (this caller claims).
func (s *RedisIdempotencyStore) Check(ctx context.Context, key string) ([]byte, bool, error) {
	full := s.keyPrefix + key
	for {
		claimed, err := s.client.SetNX(ctx, full, pendingMarker, pendingTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if claimed {
			return nil, false, nil
		}

		payload, err := s.client.Get(ctx, full).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Claim vanished between SETNX and GET; try to claim again
				continue
			}
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if !bytes.Equal(payload, pendingMarker) {
			return payload, true, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pendingPollInterval):
		}
	}
}

// Store records the response payload for a key with a TTL, replacing the
// caller's pending marker
func (s *RedisIdempotencyStore) Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency payload: %w", err)
	}
	return nil
}

// Release drops the caller's pending marker so a waiting request can claim
// the key. A stored payload is left untouched.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	full := s.keyPrefix + key
	payload, err := s.client.Get(ctx, full).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read idempotency key for release: %w", err)
	}
	if !bytes.Equal(payload, pendingMarker) {
		return nil
	}
	if err := s.client.Del(ctx, full).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisIdempotencyStore implements IdempotencyGuard
var _ shared.IdempotencyGuard = (*RedisIdempotencyStore)(nil)

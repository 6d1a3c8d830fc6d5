package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pdv/catalogsync/internal/domain/shared"
	"github.com/pdv/catalogsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultDeliveryKeyPrefix namespaces webhook delivery IDs
const DefaultDeliveryKeyPrefix = "catsync:webhook:delivery:"

const pingTimeout = 5 * time.Second

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// RedisIdempotencyStore holds delivery IDs as expiring Redis keys, shared by
// every instance using the same server.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client. Close does not close it.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultDeliveryKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed sets the key with SET NX and the given TTL
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery %s: %w", deliveryID, err)
	}
	return ok, nil
}

// IsProcessed checks whether the key exists
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+deliveryID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery %s: %w", deliveryID, err)
	}
	return n > 0, nil
}

// Close is a no-op; the client belongs to the caller
func (s *RedisIdempotencyStore) Close() error { return nil }

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

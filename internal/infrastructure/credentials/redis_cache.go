package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where media credentials are cached
const DefaultRedisKey = "catsync:media:credentials"

// RedisCache stores credentials as a JSON string with an expiry.
type RedisCache struct {
	client redis.UniversalClient
	key    string
}

// NewRedisCache creates a RedisCache on an existing client
func NewRedisCache(client redis.UniversalClient, key string) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{client: client, key: key}
}

// Get implements SharedCache
func (c *RedisCache) Get(ctx context.Context) (catalogsync.MediaCredentials, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalogsync.MediaCredentials{}, false, nil
	}
	if err != nil {
		return catalogsync.MediaCredentials{}, false, fmt.Errorf("failed to read %s: %w", c.key, err)
	}
	var creds catalogsync.MediaCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return catalogsync.MediaCredentials{}, false, fmt.Errorf("failed to decode %s: %w", c.key, err)
	}
	return creds, true, nil
}

// Set implements SharedCache. A non-positive ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, creds catalogsync.MediaCredentials, ttl time.Duration) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.key, err)
	}
	return nil
}

var _ SharedCache = (*RedisCache)(nil)

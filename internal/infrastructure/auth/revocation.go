package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRevocationPrefix namespaces revoked token ids in Redis
const DefaultRevocationPrefix = "catsync:token:revoked:"

// RevocationList invalidates operator tokens before they expire
type RevocationList interface {
	// Revoke marks the token id as revoked; ttl should cover the token's remaining life
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether the token id was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationList stores revoked ids as expiring keys
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList uses an existing client; the caller owns its lifecycle
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	if keyPrefix == "" {
		keyPrefix = DefaultRevocationPrefix
	}
	return &RedisRevocationList{client: client, keyPrefix: keyPrefix}
}

// Revoke stores the id until ttl elapses
func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks for the id key
func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList keeps revoked ids in process memory.
// Revocations are not shared between instances.
type InMemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records the id until ttl elapses
func (l *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = l.now().Add(ttl)
	return nil
}

// IsRevoked reports a live revocation, dropping expired ones
func (l *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.revoked[jti]
	if !ok {
		return false, nil
	}
	if !l.now().Before(until) {
		delete(l.revoked, jti)
		return false, nil
	}
	return true, nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)

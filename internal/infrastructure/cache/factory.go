package cache

import (
	"time"

	"github.com/pdv/catalogsync/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Option configures NewIdempotencyStore
type Option func(*storeOptions)

type storeOptions struct {
	logger        *zap.Logger
	keyPrefix     string
	sweepInterval time.Duration
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithKeyPrefix overrides the Redis key prefix
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) { o.keyPrefix = prefix }
}

// WithSweepInterval sets how often the in-memory store drops expired IDs
func WithSweepInterval(d time.Duration) Option {
	return func(o *storeOptions) { o.sweepInterval = d }
}

// NewIdempotencyStore returns a Redis-backed store when a client is given and
// an in-memory store otherwise.
func NewIdempotencyStore(client *redis.Client, opts ...Option) shared.IdempotencyStore {
	o := storeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if client != nil {
		o.logger.Info("Using Redis webhook delivery store")
		return NewRedisIdempotencyStore(client, o.keyPrefix)
	}
	o.logger.Warn("Redis disabled, webhook deliveries are de-duplicated per instance only")
	return NewInMemoryIdempotencyStore(o.sweepInterval)
}

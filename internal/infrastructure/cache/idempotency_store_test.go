package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(time.Hour)
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery is new", func(t *testing.T) {
		store, _ := newClockedStore(t)
		isNew, err := store.MarkProcessed(ctx, "delivery-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("redelivery is rejected", func(t *testing.T) {
		store, _ := newClockedStore(t)
		_, err := store.MarkProcessed(ctx, "delivery-2", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "delivery-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("expired delivery is accepted again", func(t *testing.T) {
		store, clock := newClockedStore(t)
		_, err := store.MarkProcessed(ctx, "delivery-3", time.Minute)
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)

		isNew, err := store.MarkProcessed(ctx, "delivery-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "known", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "known")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(time.Minute)
	processed, err = store.IsProcessed(ctx, "known")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	clock.Advance(5 * time.Minute)
	store.sweep()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentMarks(t *testing.T) {
	ctx := context.Background()
	store, _ := newClockedStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "same-delivery", time.Hour)
			if err == nil && isNew {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore(0)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestNewIdempotencyStore(t *testing.T) {
	t.Run("in-memory without a client", func(t *testing.T) {
		store := NewIdempotencyStore(nil, WithLogger(zaptest.NewLogger(t)), WithSweepInterval(time.Hour))
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis with a client", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		t.Cleanup(func() { _ = client.Close() })

		store := NewIdempotencyStore(client, WithKeyPrefix("test:"))
		require.IsType(t, &RedisIdempotencyStore{}, store)
		assert.Equal(t, "test:", store.(*RedisIdempotencyStore).keyPrefix)
	})
}

func TestRedisIdempotencyStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisIdempotencyStore(client, "")
	assert.Equal(t, DefaultDeliveryKeyPrefix, store.keyPrefix)

	_, err := store.MarkProcessed(context.Background(), "d-1", time.Minute)
	assert.ErrorContains(t, err, "failed to mark delivery d-1")

	_, err = store.IsProcessed(context.Background(), "d-1")
	assert.ErrorContains(t, err, "failed to check delivery d-1")
}

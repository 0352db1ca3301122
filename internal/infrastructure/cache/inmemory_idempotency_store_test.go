package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
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

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(time.Hour)
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		store, _ := newTestStore(t)

		claimed, err := store.MarkProcessed(ctx, "payment:create:abc", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = store.MarkProcessed(ctx, "payment:create:abc", time.Hour)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("expired claim can be taken again", func(t *testing.T) {
		store, clock := newTestStore(t)

		_, _ = store.MarkProcessed(ctx, "k", time.Minute)
		clock.Advance(time.Minute)

		claimed, err := store.MarkProcessed(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("release frees the key", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, _ = store.MarkProcessed(ctx, "k", time.Hour)
		require.NoError(t, store.Release(ctx, "k"))

		processed, err := store.IsProcessed(ctx, "k")
		require.NoError(t, err)
		assert.False(t, processed)

		claimed, _ := store.MarkProcessed(ctx, "k", time.Hour)
		assert.True(t, claimed)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	processed, _ := store.IsProcessed(ctx, "k")
	assert.False(t, processed)

	_, _ = store.MarkProcessed(ctx, "k", time.Minute)
	processed, _ = store.IsProcessed(ctx, "k")
	assert.True(t, processed)

	clock.Advance(2 * time.Minute)
	processed, _ = store.IsProcessed(ctx, "k")
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	clock.Advance(10 * time.Minute)
	store.sweep()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if claimed, _ := store.MarkProcessed(ctx, "same-key", time.Hour); claimed {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func unreachableRedis() config.RedisConfig {
	// nothing listens on port 1
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}

func TestNewRedisIdempotencyStore_Unreachable(t *testing.T) {
	_, err := NewRedisIdempotencyStore(context.Background(), unreachableRedis())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestIdempotencyStoreFactory(t *testing.T) {
	t.Run("falls back to in-memory", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(unreachableRedis(), WithLogger(zap.NewNop()))
		store, err := f.CreateStore(context.Background())
		require.NoError(t, err)
		defer store.Close()

		_, ok := store.(*InMemoryIdempotencyStore)
		assert.True(t, ok)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(unreachableRedis(), WithInMemoryFallback(false))
		_, err := f.CreateStore(context.Background())
		assert.ErrorContains(t, err, "redis required")
	})
}

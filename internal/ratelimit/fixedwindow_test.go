package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shortener/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxRequests int, window time.Duration) (*FixedWindowLimiter, *storage.MemoryStorage) {
	t.Helper()
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	limiter := NewFixedWindowLimiter(store, Config{MaxRequests: maxRequests, Window: window})
	return limiter, store
}

// setNow pins the limiter's clock to a fixed instant.
func setNow(limiter *FixedWindowLimiter, at time.Time) {
	limiter.now = func() time.Time { return at }
}

func TestFixedWindowAllowSequence(t *testing.T) {
	limiter, store := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	// Mid-window instant: 30s past an epoch-aligned minute boundary.
	base := time.UnixMilli(1_700_000_040_000).Add(30 * time.Second)
	setNow(limiter, base)

	for i := 0; i < 5; i++ {
		decision, err := limiter.Allow(ctx, "key-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 5, decision.Limit)
		assert.Equal(t, 4-i, decision.Remaining)
	}

	decision, err := limiter.Allow(ctx, "key-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Zero(t, decision.Remaining)
	// 30s left in the window.
	assert.Equal(t, 30*time.Second, decision.RetryAfter)
	assert.Equal(t, base.Add(30*time.Second), decision.ResetAt)

	// Denial consumed nothing: the stored count is still exactly 5.
	ws := base.UnixMilli() / 60_000 * 60_000
	count, err := store.WindowCount(ctx, "key-a", ws)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	// Repeated denials stay denied and stay at 5.
	for i := 0; i < 3; i++ {
		decision, err = limiter.Allow(ctx, "key-a")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	}
	count, err = store.WindowCount(ctx, "key-a", ws)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestFixedWindowReset(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_040_000)
	setNow(limiter, base)

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "key-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := limiter.Allow(ctx, "key-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// One millisecond past the boundary lands in a fresh window.
	setNow(limiter, base.Add(time.Minute).Add(time.Millisecond))
	decision, err = limiter.Allow(ctx, "key-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)
}

func TestFixedWindowKeyIsolation(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()
	setNow(limiter, time.UnixMilli(1_700_000_040_000))

	decision, err := limiter.Allow(ctx, "key-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = limiter.Allow(ctx, "key-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Exhausting key-a leaves key-b untouched.
	decision, err = limiter.Allow(ctx, "key-b")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestFixedWindowStatusDoesNotConsume(t *testing.T) {
	limiter, store := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_040_000)
	setNow(limiter, base)

	for i := 0; i < 10; i++ {
		decision, err := limiter.Status(ctx, "key-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 3, decision.Remaining)
	}

	ws := base.UnixMilli() / 60_000 * 60_000
	count, err := store.WindowCount(ctx, "key-a", ws)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = limiter.Allow(ctx, "key-a")
	require.NoError(t, err)

	decision, err := limiter.Status(ctx, "key-a")
	require.NoError(t, err)
	assert.Equal(t, 2, decision.Remaining)
}

func TestFixedWindowExactAdmissionUnderContention(t *testing.T) {
	const limit = 10
	limiter, _ := newTestLimiter(t, limit, time.Minute)
	ctx := context.Background()
	setNow(limiter, time.UnixMilli(1_700_000_040_000))

	var wg sync.WaitGroup
	results := make(chan bool, 2*limit)
	for i := 0; i < 2*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Allow(ctx, "key-a")
			assert.NoError(t, err)
			results <- decision.Allowed
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for allowed := range results {
		if allowed {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted)
}

func TestFixedWindowCleanup(t *testing.T) {
	limiter, store := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_040_000)

	setNow(limiter, base)
	_, err := limiter.Allow(ctx, "key-a")
	require.NoError(t, err)

	setNow(limiter, base.Add(2*time.Hour))
	_, err = limiter.Allow(ctx, "key-a")
	require.NoError(t, err)

	// Retain one hour: only the two-hour-old window goes.
	deleted, err := limiter.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	ws := base.UnixMilli() / 60_000 * 60_000
	count, err := store.WindowCount(ctx, "key-a", ws)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The active window survived.
	decision, err := limiter.Status(ctx, "key-a")
	require.NoError(t, err)
	assert.Equal(t, 4, decision.Remaining)
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) WindowCount(context.Context, string, int64) (int64, error) {
	return 0, errors.New("store down")
}

func (failingStore) IncrementWindowBelow(context.Context, string, int64, int64) (int64, bool, error) {
	return 0, false, errors.New("store down")
}

func (failingStore) DeleteWindowsBefore(context.Context, int64) (int64, error) {
	return 0, errors.New("store down")
}

func TestFixedWindowStoreErrors(t *testing.T) {
	limiter := NewFixedWindowLimiter(failingStore{}, Config{MaxRequests: 5, Window: time.Minute})
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "key-a")
	assert.Error(t, err)

	_, err = limiter.Status(ctx, "key-a")
	assert.Error(t, err)

	_, err = limiter.Cleanup(ctx, time.Hour)
	assert.Error(t, err)
}

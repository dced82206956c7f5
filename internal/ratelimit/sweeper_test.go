package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRemovesExpiredWindows(t *testing.T) {
	limiter, store := newTestLimiter(t, 5, time.Minute)

	base := time.UnixMilli(1_700_000_040_000)
	setNow(limiter, base)
	_, err := limiter.Allow(context.Background(), "key-a")
	require.NoError(t, err)

	// Move the clock far past retention, then let the sweeper fire.
	setNow(limiter, base.Add(48*time.Hour))
	sweeper := NewSweeper(limiter, time.Hour, 10*time.Millisecond)
	defer sweeper.Close()

	assert.Eventually(t, func() bool {
		count, err := store.WindowCount(context.Background(), "key-a", base.UnixMilli())
		return err == nil && count == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSweeperCloseIsIdempotent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 5, time.Minute)
	sweeper := NewSweeper(limiter, time.Hour, time.Hour)

	sweeper.Close()
	sweeper.Close() // must not panic
}

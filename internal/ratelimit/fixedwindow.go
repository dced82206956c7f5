package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// FixedWindowLimiter enforces a fixed-window quota backed by a CounterStore.
//
// Windows are aligned to epoch boundaries: windowStart = floor(now/W)*W, so
// all keys share the same boundaries at any instant. A burst straddling a
// boundary can therefore admit up to 2x the limit within a short span; this
// coarseness is a documented trade-off of the fixed-window algorithm, not a
// defect.
type FixedWindowLimiter struct {
	store CounterStore
	cfg   Config
	now   func() time.Time
}

// NewFixedWindowLimiter creates a limiter over the given counter store.
func NewFixedWindowLimiter(store CounterStore, cfg Config) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// windowStart returns the epoch-aligned start of the window containing t,
// in unix milliseconds.
func (f *FixedWindowLimiter) windowStart(t time.Time) int64 {
	w := f.cfg.Window.Milliseconds()
	return t.UnixMilli() / w * w
}

// Allow checks the current window's count and admits the request if quota
// remains, atomically recording it. The limit check rides on the store's
// conditional increment, so N concurrent calls against an empty window with
// limit N admit exactly N. A denied request performs no mutation.
//
// Remaining is reported relative to the pre-increment count: the first
// admitted request in a window of limit M reports M-1.
func (f *FixedWindowLimiter) Allow(ctx context.Context, apiKeyID string) (Decision, error) {
	now := f.now()
	ws := f.windowStart(now)
	resetAt := time.UnixMilli(ws + f.cfg.Window.Milliseconds())

	count, err := f.store.WindowCount(ctx, apiKeyID, ws)
	if err != nil {
		return Decision{}, fmt.Errorf("read window count: %w", err)
	}
	if count >= int64(f.cfg.MaxRequests) {
		return f.denied(now, resetAt), nil
	}

	newCount, admitted, err := f.store.IncrementWindowBelow(ctx, apiKeyID, ws, int64(f.cfg.MaxRequests))
	if err != nil {
		// A lost insert race can surface as a transient store error on
		// some backends; retry once as an update before giving up.
		newCount, admitted, err = f.store.IncrementWindowBelow(ctx, apiKeyID, ws, int64(f.cfg.MaxRequests))
		if err != nil {
			return Decision{}, fmt.Errorf("increment window count: %w", err)
		}
	}
	if !admitted {
		// Concurrent callers filled the window between the read and the
		// increment.
		return f.denied(now, resetAt), nil
	}

	return Decision{
		Allowed:   true,
		Limit:     f.cfg.MaxRequests,
		Remaining: f.cfg.MaxRequests - int(newCount),
		ResetAt:   resetAt,
	}, nil
}

// Status reports the current window state without mutating anything.
func (f *FixedWindowLimiter) Status(ctx context.Context, apiKeyID string) (Decision, error) {
	now := f.now()
	ws := f.windowStart(now)
	resetAt := time.UnixMilli(ws + f.cfg.Window.Milliseconds())

	count, err := f.store.WindowCount(ctx, apiKeyID, ws)
	if err != nil {
		return Decision{}, fmt.Errorf("read window count: %w", err)
	}
	if count >= int64(f.cfg.MaxRequests) {
		return f.denied(now, resetAt), nil
	}

	return Decision{
		Allowed:   true,
		Limit:     f.cfg.MaxRequests,
		Remaining: f.cfg.MaxRequests - int(count),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup deletes all window records that started before now - retention,
// regardless of key. Only strictly-old windows are removed, so running it
// concurrently with Allow never touches the active window. Returns the
// number of records deleted.
func (f *FixedWindowLimiter) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := f.now().Add(-retention).UnixMilli()
	deleted, err := f.store.DeleteWindowsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired windows: %w", err)
	}
	return deleted, nil
}

func (f *FixedWindowLimiter) denied(now, resetAt time.Time) Decision {
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{
		Allowed:    false,
		Limit:      f.cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}

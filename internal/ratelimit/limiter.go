// Package ratelimit provides fixed-window rate limiting for credentialed
// HTTP requests. Request counts live in shared storage keyed by
// (API key, window start), so every check consults the store and multiple
// service instances sharing one database enforce one combined quota. The
// package includes HTTP middleware that sets standard rate limit response
// headers and a background sweeper that prunes expired windows.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe
// for concurrent use.
type Limiter interface {
	// Allow checks whether a request from the given API key should be
	// admitted under the current window's quota, and records admitted
	// requests. Denied requests never consume quota.
	Allow(ctx context.Context, apiKeyID string) (Decision, error)

	// Status reports the current window state without consuming quota.
	Status(ctx context.Context, apiKeyID string) (Decision, error)
}

// Decision contains the outcome of a quota check and the state needed for
// response headers.
type Decision struct {
	Allowed    bool          // Whether the request is admitted
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests left in the current window
	ResetAt    time.Time     // When the current window ends
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Config holds the fixed-window parameters. They apply uniformly to all
// API keys; there is no per-key override.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// CounterStore is the persistence contract the limiter needs. It is
// implemented by the storage package.
type CounterStore interface {
	// WindowCount returns the request count for (apiKeyID, windowStart),
	// 0 when no record exists. windowStart is unix milliseconds.
	WindowCount(ctx context.Context, apiKeyID string, windowStart int64) (int64, error)

	// IncrementWindowBelow atomically inserts a record at count 1 or
	// increments an existing one, provided the stored count is below
	// limit. Returns the resulting count and whether the increment was
	// applied.
	IncrementWindowBelow(ctx context.Context, apiKeyID string, windowStart, limit int64) (count int64, admitted bool, err error)

	// DeleteWindowsBefore removes all records with windowStart < cutoff
	// and returns the number deleted.
	DeleteWindowsBefore(ctx context.Context, cutoff int64) (int64, error)
}

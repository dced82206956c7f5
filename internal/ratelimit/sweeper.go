package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically removes expired window records so the counter table
// does not grow without bound. Deletion only touches windows older than the
// retention horizon, never the active one, so it is safe to run alongside
// live quota checks.
type Sweeper struct {
	limiter   *FixedWindowLimiter
	retention time.Duration
	interval  time.Duration

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewSweeper creates a sweeper and starts its background goroutine.
func NewSweeper(limiter *FixedWindowLimiter, retention, interval time.Duration) *Sweeper {
	s := &Sweeper{
		limiter:   limiter,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the background goroutine.
func (s *Sweeper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.limiter.Cleanup(ctx, s.retention)
	if err != nil {
		slog.Error("rate limit window sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Debug("swept expired rate limit windows", "deleted", deleted)
	}
}

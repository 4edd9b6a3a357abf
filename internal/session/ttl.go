package session

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the background worker sweeps.
const DefaultSweepInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically sweeps idle
// sessions, so memory is reclaimed even when no requests arrive. The returned
// channel is closed once the worker has exited after ctx is cancelled.
func StartTTLWorker(ctx context.Context, s *Store, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	logger := s.log()

	go func() {
		defer close(done)
		defer ticker.Stop()
		logger.Info("TTL worker started", "interval", interval, "ttl", s.TTL())

		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					logger.Info("TTL worker evicted sessions", "count", n, "remaining", s.Len())
				}
			case <-ctx.Done():
				logger.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()

	return done
}

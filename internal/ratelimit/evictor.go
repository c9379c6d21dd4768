// evictor.go houses the sweep loop for Limiter.  Every interval it removes
// windows whose expiry has passed, so keys from one-off visitors do not
// linger until LRU pressure pushes them out.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run sweeps expired windows every interval until ctx is cancelled.  It
// always returns nil so it can sit in an errgroup beside the HTTP server.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, log *zap.SugaredLogger) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				log.Debugw("rate-limit windows evicted", "limiter", l.name, "count", n)
			}
		}
	}
}

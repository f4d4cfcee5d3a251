package tokenstore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper periodically sweeps expired entries until ctx is cancelled. The
// process lifecycle owns this loop; the store itself holds no hidden timers.
// It blocks, so callers run it in its own goroutine.
func RunSweeper(ctx context.Context, store Store, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ctx)
			if err != nil {
				log.Warn("token sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Debug("token sweep", zap.Int("removed", removed))
			}
		}
	}
}

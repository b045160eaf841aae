package runner

import (
	"context"
	"log/slog"
	"time"
)

// Watch invokes fn once immediately and then on every interval tick,
// blocking until ctx is cancelled. Scheduling policy stays here; fn owns
// everything else.
func Watch(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(context.Context)) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	logger.Info("watch loop started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch loop stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

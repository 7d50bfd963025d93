package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/store"
)

// Janitor polls the store and purges records whose retention window has
// elapsed. Completed and failed jobs share the same fixed window; until
// it passes they stay queryable through the status endpoint.
type Janitor struct {
	store    store.JobStore
	interval time.Duration
	logger   *zap.Logger
}

func NewJanitor(s store.JobStore, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{store: s, interval: interval, logger: logger}
}

// Run ticks every interval and purges expired records.
// Stops cleanly when ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", zap.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopping")
			return
		case <-ticker.C:
			purged, err := j.store.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				j.logger.Error("retention purge error", zap.Error(err))
				continue
			}
			if purged > 0 {
				j.logger.Info("purged expired jobs", zap.Int("count", purged))
			}
		}
	}
}

package core

// scheduler.go runs periodic maintenance for the import pipeline.
//
// Previews that are never confirmed are abandoned. Caches with native expiry
// (Redis) drop them on their own; caches implementing Sweeper are purged
// here on every tick. The loop is context-aware and stops on shutdown; a
// failed sweep is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/inventory/internal/metrics"
)

// DefaultSweepInterval is how often expired previews are purged when unset.
const DefaultSweepInterval = 5 * time.Minute

// StartMaintenance blocks running maintenance until ctx is cancelled.
// It returns immediately when the preview cache needs no sweeping.
func (s *Service) StartMaintenance(ctx context.Context) {
	sweeper, ok := s.cache.(Sweeper)
	if !ok {
		return
	}

	interval := s.sweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	slog.Info("preview sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("preview sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx, sweeper)
		}
	}
}

// runSweep performs one sweep cycle.
func (s *Service) runSweep(ctx context.Context, sweeper Sweeper) {
	start := time.Now()

	n, err := sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("preview sweep failed", "error", err)
		return
	}
	metrics.PreviewsSwept.Add(float64(n))

	if n > 0 {
		slog.Info("abandoned previews removed",
			"previews_removed", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

package crowd

import (
	"context"
	"log/slog"
	"time"
)

// Timer periodically recomputes the published shadow-score snapshot.
// Exactly one Timer should run per Tracker.
type Timer struct {
	tracker  *Tracker
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTimer creates the recompute timer.
func NewTimer(tracker *Tracker, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the recompute loop. Call in a goroutine. An initial recompute
// runs immediately so scores are populated before the first tick.
func (t *Timer) Start(ctx context.Context) {
	t.tracker.Recompute()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.tracker.Recompute()
			t.logger.Debug("shadow scores recomputed",
				"segments", t.tracker.SnapshotSize(),
			)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

// Package crowd implements the sliding-window crowd density tracker.
//
// Visit events (a traveler's position resolving onto a segment) are appended
// to per-segment logs. A periodic recompute prunes entries older than the
// rolling window, normalizes visit counts so the busiest segment scores 1.0,
// and publishes the result as an immutable snapshot: readers always observe
// either the previous or the new complete map, never a partial one.
package crowd

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/saaj376/SafeTrace/internal/metrics"
)

// Tracker maintains recent visit timestamps per segment and the published
// shadow-score snapshot.
type Tracker struct {
	window time.Duration

	mu     sync.Mutex
	visits map[int64][]time.Time

	scores atomic.Value // map[int64]float64, replaced wholesale on recompute

	now func() time.Time
}

// NewTracker creates a tracker with the given rolling window.
func NewTracker(window time.Duration) *Tracker {
	t := &Tracker{
		window: window,
		visits: make(map[int64][]time.Time),
		now:    time.Now,
	}
	t.scores.Store(map[int64]float64{})
	return t
}

// RecordVisit appends a visit timestamp for the segment. Safe for concurrent
// callers; no visit is ever lost.
func (t *Tracker) RecordVisit(segmentID int64) {
	now := t.now()
	t.mu.Lock()
	t.visits[segmentID] = append(t.visits[segmentID], now)
	t.mu.Unlock()
	metrics.VisitsRecordedTotal.Inc()
}

// Score returns the published shadow score for a segment in [0, 1].
// Segments absent from the current snapshot score 0.
func (t *Tracker) Score(segmentID int64) float64 {
	scores := t.scores.Load().(map[int64]float64)
	return scores[segmentID]
}

// Recompute prunes visits older than the rolling window, drops segments whose
// logs emptied, counts the remainder, normalizes by the maximum count, and
// publishes the new snapshot atomically.
func (t *Tracker) Recompute() {
	start := t.now()
	cutoff := start.Add(-t.window)

	counts := make(map[int64]int)
	t.mu.Lock()
	for id, stamps := range t.visits {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(t.visits, id)
			continue
		}
		t.visits[id] = kept
		counts[id] = len(kept)
	}
	t.mu.Unlock()

	scores := make(map[int64]float64, len(counts))
	if len(counts) > 0 {
		maxCount := 0
		for _, c := range counts {
			if c > maxCount {
				maxCount = c
			}
		}
		for id, c := range counts {
			scores[id] = float64(c) / float64(maxCount)
		}
	}
	t.scores.Store(scores)

	metrics.ShadowSegments.Set(float64(len(scores)))
	metrics.ShadowRecomputeDuration.Observe(time.Since(start).Seconds())
}

// SnapshotSize returns the number of segments in the published snapshot.
func (t *Tracker) SnapshotSize() int {
	return len(t.scores.Load().(map[int64]float64))
}

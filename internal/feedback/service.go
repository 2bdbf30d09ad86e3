package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/saaj376/SafeTrace/internal/metrics"
	"github.com/saaj376/SafeTrace/internal/syncutil"
	"github.com/saaj376/SafeTrace/internal/traces"
)

// Service applies ratings to segment feedback records. Updates to the same
// segment are serialized with a per-segment lock: the running-mean
// read-modify-write is not atomic, and interleaved updates would corrupt the
// arithmetic. Different segments update in parallel.
type Service struct {
	store Store
	locks syncutil.ShardedMutex
}

// NewService creates a feedback service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Submit applies a 1–5 rating to a segment and returns the updated record.
// The first rating for a segment starts from the defaults (0.5 score, 0.1
// confidence, zero count).
func (s *Service) Submit(ctx context.Context, segmentID int64, rating int) (*SegmentFeedback, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	ctx, span := traces.StartSpan(ctx, "feedback.Submit", traces.SegmentID(segmentID))
	defer span.End()

	unlock := s.locks.Lock(segmentID)
	defer unlock()

	fb, err := s.store.Get(ctx, segmentID)
	if err == ErrSegmentNotFound {
		fb = &SegmentFeedback{
			SegmentID:  segmentID,
			Score:      DefaultScore,
			Confidence: DefaultConfidence,
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	r := float64(rating-1) / 4 // normalize to [0, 1]
	n := float64(fb.FeedbackCount)

	fb.Score = (fb.Score*n + r) / (n + 1)
	fb.FeedbackCount++
	fb.Confidence = DefaultConfidence + float64(fb.FeedbackCount)*ConfidenceStep
	if fb.Confidence > ConfidenceCap {
		fb.Confidence = ConfidenceCap
	}
	fb.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	metrics.FeedbackSubmissionsTotal.Inc()
	return fb, nil
}

// Get returns the feedback record for a segment, or ErrSegmentNotFound if it
// has never been rated.
func (s *Service) Get(ctx context.Context, segmentID int64) (*SegmentFeedback, error) {
	return s.store.Get(ctx, segmentID)
}

// Signal returns the score and confidence used by cost fusion. Unrated
// segments answer with the neutral defaults rather than an error.
func (s *Service) Signal(segmentID int64) (score, confidence float64) {
	fb, err := s.store.Get(context.Background(), segmentID)
	if err != nil {
		return DefaultScore, DefaultConfidence
	}
	return fb.Score, fb.Confidence
}

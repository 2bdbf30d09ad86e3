// Package feedback implements the online segment safety ledger.
//
// Each rated segment carries a running-mean safety score over every rating it
// has ever received, plus a confidence that grows with the rating count. The
// running mean is an unweighted average by design: a segment's history counts
// as much as its latest rating.
package feedback

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSegmentNotFound = errors.New("no feedback recorded for segment")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

// Defaults for a segment that has never been rated.
const (
	DefaultScore      = 0.5
	DefaultConfidence = 0.1
	ConfidenceStep    = 0.05
	ConfidenceCap     = 0.9
)

// SegmentFeedback is the accumulated safety signal for one segment.
type SegmentFeedback struct {
	SegmentID     int64     `json:"segment_id"`
	Score         float64   `json:"score"`      // [0,1], running mean of normalized ratings
	Confidence    float64   `json:"confidence"` // [0,1], non-decreasing, capped at 0.9
	FeedbackCount int       `json:"feedback_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists segment feedback records.
type Store interface {
	Get(ctx context.Context, segmentID int64) (*SegmentFeedback, error)
	Put(ctx context.Context, fb *SegmentFeedback) error
}

package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_FirstRating(t *testing.T) {
	svc := NewService(NewMemoryStore())

	fb, err := svc.Submit(context.Background(), 1, 5)
	require.NoError(t, err)

	// First rating: (0.5*0 + 1.0) / 1 = 1.0
	assert.InDelta(t, 1.0, fb.Score, 1e-9)
	assert.Equal(t, 1, fb.FeedbackCount)
	assert.InDelta(t, 0.15, fb.Confidence, 1e-9)
}

func TestSubmit_RunningMean(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	// Ratings [5, 1] normalize to [1.0, 0.0]; mean is 0.5.
	_, err := svc.Submit(ctx, 1, 5)
	require.NoError(t, err)
	fb, err := svc.Submit(ctx, 1, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, fb.Score, 1e-9)
	assert.Equal(t, 2, fb.FeedbackCount)
	assert.InDelta(t, 0.20, fb.Confidence, 1e-9)
}

func TestSubmit_InvalidRating(t *testing.T) {
	svc := NewService(NewMemoryStore())

	for _, rating := range []int{0, 6, -3} {
		_, err := svc.Submit(context.Background(), 1, rating)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestSubmit_ConfidenceCapped(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	var fb *SegmentFeedback
	var err error
	for i := 0; i < 25; i++ {
		fb, err = svc.Submit(ctx, 1, 3)
		require.NoError(t, err)
	}

	assert.InDelta(t, ConfidenceCap, fb.Confidence, 1e-9)
	assert.Equal(t, 25, fb.FeedbackCount)
}

func TestSubmit_ConcurrentSameSegment(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		rating := 1 + i%5
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, 1, rating)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fb, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	// Serialization guarantees no update is lost.
	assert.Equal(t, n, fb.FeedbackCount)
	// 100 ratings cycling 1..5 normalize to mean 0.5 regardless of order.
	assert.InDelta(t, 0.5, fb.Score, 1e-9)
}

func TestGet_Unrated(t *testing.T) {
	svc := NewService(NewMemoryStore())
	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r
}

func TestHandler_RouteReview(t *testing.T) {
	svc := NewService(NewMemoryStore())
	r := newTestRouter(svc)

	body, _ := json.Marshal(RouteReviewRequest{
		SegmentFeedback: []SegmentRating{
			{SegmentID: 1, Rating: 5},
			{SegmentID: 2, Rating: 3},
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/feedback/route-review", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success         bool `json:"success"`
		UpdatedSegments int  `json:"updated_segments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.UpdatedSegments)
}

func TestHandler_RouteReview_BadRating(t *testing.T) {
	r := newTestRouter(NewService(NewMemoryStore()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/feedback/route-review",
		bytes.NewReader([]byte(`{"segment_feedback":[{"segment_id":1,"rating":9}]}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "rating: must be between 1 and 5")
}

func TestHandler_RouteReview_NegativeSegmentID(t *testing.T) {
	r := newTestRouter(NewService(NewMemoryStore()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/feedback/route-review",
		bytes.NewReader([]byte(`{"segment_feedback":[{"segment_id":-4,"rating":3}]}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "segment_id")
}

func TestHandler_GetSegment(t *testing.T) {
	svc := NewService(NewMemoryStore())
	_, err := svc.Submit(context.Background(), 7, 4)
	require.NoError(t, err)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/feedback/segments/7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Segment SegmentFeedback `json:"segment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Segment.SegmentID)
	assert.InDelta(t, 0.75, resp.Segment.Score, 1e-9)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/feedback/segments/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

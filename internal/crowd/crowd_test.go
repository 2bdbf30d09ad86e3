package crowd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_DefaultZero(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	assert.Zero(t, tr.Score(123))
}

func TestRecompute_Normalization(t *testing.T) {
	tr := NewTracker(30 * time.Minute)

	for i := 0; i < 10; i++ {
		tr.RecordVisit(1) // segA
	}
	for i := 0; i < 5; i++ {
		tr.RecordVisit(2) // segB
	}

	tr.Recompute()

	assert.InDelta(t, 1.0, tr.Score(1), 1e-9)
	assert.InDelta(t, 0.5, tr.Score(2), 1e-9)
	assert.Zero(t, tr.Score(3)) // no visits: absent, scores 0
	assert.Equal(t, 2, tr.SnapshotSize())
}

func TestRecompute_PrunesOldVisits(t *testing.T) {
	tr := NewTracker(30 * time.Minute)

	base := time.Now()
	tr.now = func() time.Time { return base.Add(-45 * time.Minute) }
	tr.RecordVisit(1)
	tr.RecordVisit(1)

	tr.now = func() time.Time { return base }
	tr.RecordVisit(2)

	tr.Recompute()

	// Segment 1's visits fell out of the window and its log was dropped.
	assert.Zero(t, tr.Score(1))
	assert.InDelta(t, 1.0, tr.Score(2), 1e-9)
	assert.Equal(t, 1, tr.SnapshotSize())
}

func TestRecompute_EmptyPublishesEmptySnapshot(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.RecordVisit(7)
	tr.Recompute()
	require.Equal(t, 1, tr.SnapshotSize())

	tr.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	tr.Recompute()
	assert.Zero(t, tr.SnapshotSize())
	assert.Zero(t, tr.Score(7))
}

func TestRecordVisit_ConcurrentNoLostUpdates(t *testing.T) {
	tr := NewTracker(30 * time.Minute)

	const callers = 50
	const perCaller = 20
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				tr.RecordVisit(9)
			}
		}()
	}
	wg.Wait()

	tr.mu.Lock()
	count := len(tr.visits[9])
	tr.mu.Unlock()
	assert.Equal(t, callers*perCaller, count)
}

func TestScore_ConcurrentReadsDuringRecompute(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	tr.RecordVisit(1)
	tr.Recompute()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s := tr.Score(1)
			// Snapshot replacement means a reader sees either 1.0 or,
			// after pruning, 0 — never anything in between.
			if s != 0 && s != 1 {
				t.Errorf("unexpected score %v", s)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		tr.Recompute()
	}
	<-done
}

func TestTimer_StartStop(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.RecordVisit(1)

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	timer := NewTimer(tr, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	go func() {
		timer.Start(ctx)
		close(finished)
	}()

	// The initial recompute publishes scores without waiting for a tick.
	require.Eventually(t, func() bool { return tr.SnapshotSize() == 1 },
		time.Second, 5*time.Millisecond)

	timer.Stop()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
}

func newTestRouter(tr *Tracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(tr).RegisterRoutes(r.Group("/v1"))
	return r
}

func TestHandler_RecordVisit(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	r := newTestRouter(tr)

	body, _ := json.Marshal(VisitRequest{SegmentID: ptr(int64(5))})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/visits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	tr.Recompute()
	assert.InDelta(t, 1.0, tr.Score(5), 1e-9)
}

func TestHandler_RecordVisit_Invalid(t *testing.T) {
	r := newTestRouter(NewTracker(30 * time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/visits", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/visits", bytes.NewReader([]byte(`{"segment_id":-1}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "segment_id: must be non-negative")
}

func TestHandler_GetScore(t *testing.T) {
	tr := NewTracker(30 * time.Minute)
	tr.RecordVisit(8)
	tr.Recompute()
	r := newTestRouter(tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/crowd/segments/8", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SegmentID   int64   `json:"segment_id"`
		ShadowScore float64 `json:"shadow_score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(8), resp.SegmentID)
	assert.InDelta(t, 1.0, resp.ShadowScore, 1e-9)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/crowd/segments/notanint", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/crowd/segments/-3", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func ptr[T any](v T) *T { return &v }

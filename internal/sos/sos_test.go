package sos

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/realtime"
)

type capturedEvent struct {
	Type  realtime.EventType
	Token string
	Data  interface{}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *capturePublisher) Publish(t realtime.EventType, token string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Type: t, Token: token, Data: data})
}

func (p *capturePublisher) types() []realtime.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var startLoc = geo.Coordinate{Lat: 40.0, Lon: -74.0}

func testService() (*Service, *capturePublisher) {
	pub := &capturePublisher{}
	svc := NewService(NewMemoryStore(), pub)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 22, 30, 0, 0, time.UTC) }
	return svc, pub
}

func TestSessionLifecycle(t *testing.T) {
	svc, pub := testService()
	ctx := context.Background()

	session, err := svc.Activate(ctx, startLoc)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.Token)
	assert.NotEqual(t, session.ID, session.Token)
	assert.Equal(t, StatusActive, session.Status)
	assert.Equal(t, startLoc, session.LastLocation)

	moved := geo.Coordinate{Lat: 40.001, Lon: -74.001}
	updated, err := svc.UpdateLocation(ctx, session.Token, moved)
	require.NoError(t, err)
	assert.Equal(t, moved, updated.LastLocation)
	assert.Equal(t, 1, updated.UpdateCount)

	got, err := svc.Status(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, moved, got.LastLocation)

	ended, err := svc.Deactivate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, ended.Status)
	assert.False(t, ended.EndedAt.IsZero())

	assert.Equal(t, []realtime.EventType{
		realtime.EventSOSActivated,
		realtime.EventLocationUpdate,
		realtime.EventSOSEnded,
	}, pub.types())
}

func TestStatusUnknownToken(t *testing.T) {
	svc, _ := testService()

	_, err := svc.Status(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStatusAfterDeactivation(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	session, err := svc.Activate(ctx, startLoc)
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, session.Token)
	require.NoError(t, err)

	// A stale share token behaves like an unknown one.
	_, err = svc.Status(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateEndedSession(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	session, err := svc.Activate(ctx, startLoc)
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, session.Token)
	require.NoError(t, err)

	_, err = svc.UpdateLocation(ctx, session.Token, startLoc)
	assert.ErrorIs(t, err, ErrSessionEnded)

	_, err = svc.Deactivate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestReportAlert(t *testing.T) {
	svc, pub := testService()
	ctx := context.Background()

	session, err := svc.Activate(ctx, startLoc)
	require.NoError(t, err)

	err = svc.ReportAlert(ctx, session.Token, map[string]interface{}{"type": "DEVIATION_ALERT"})
	require.NoError(t, err)

	events := pub.types()
	assert.Equal(t, realtime.EventSafetyAlert, events[len(events)-1])

	err = svc.ReportAlert(ctx, "no-such-token", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNilPublisher(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)

	session, err := svc.Activate(context.Background(), startLoc)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &Session{ID: "s1", Token: "t1", Status: StatusActive}
	require.NoError(t, store.Create(ctx, session))

	got, err := store.GetByToken(ctx, "t1")
	require.NoError(t, err)
	got.Status = StatusEnded

	again, err := store.GetByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, again.Status)

	require.Equal(t, 1, store.Len())
	assert.ErrorIs(t, store.Update(ctx, &Session{ID: "missing", Token: "x"}), ErrSessionNotFound)
}

func setupRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _ := testService()
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r, svc
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	r.ServeHTTP(w, req)
	return w
}

func TestHandlersRoundTrip(t *testing.T) {
	r, _ := setupRouter(t)

	w := postJSON(t, r, "/v1/sos/activate", gin.H{"location": gin.H{"lat": 40.0, "lon": -74.0}})
	require.Equal(t, http.StatusCreated, w.Code)

	var session Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	w = postJSON(t, r, "/v1/sos/location-update", gin.H{
		"token":    session.Token,
		"location": gin.H{"lat": 40.001, "lon": -74.001},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/sos/status/"+session.Token, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/v1/sos/deactivate", gin.H{"token": session.Token})
	require.Equal(t, http.StatusOK, w.Code)

	// The token is dead now.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/sos/status/"+session.Token, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postJSON(t, r, "/v1/sos/deactivate", gin.H{"token": session.Token})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlersValidation(t *testing.T) {
	r, _ := setupRouter(t)

	w := postJSON(t, r, "/v1/sos/activate", gin.H{"location": gin.H{"lat": 123.0, "lon": -74.0}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "location.lat: must be between -90 and 90")

	w = postJSON(t, r, "/v1/sos/location-update", gin.H{"token": "t"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/v1/sos/location-update", gin.H{
		"token":    "no-such-token",
		"location": gin.H{"lat": 40.0, "lon": -74.0},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerAlertSanitizesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := &capturePublisher{}
	svc := NewService(NewMemoryStore(), pub)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))

	w := postJSON(t, r, "/v1/sos/activate", gin.H{"location": gin.H{"lat": 40.0, "lon": -74.0}})
	require.Equal(t, http.StatusCreated, w.Code)
	var session Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = postJSON(t, r, "/v1/sos/alert", gin.H{
		"token": session.Token,
		"alert": gin.H{"type": "DEVIATION_ALERT", "message": "  help\x00 needed  "},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	last := pub.events[len(pub.events)-1]
	require.Equal(t, realtime.EventSafetyAlert, last.Type)
	alert, ok := last.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "help needed", alert["message"])
}

package sos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/metrics"
	"github.com/saaj376/SafeTrace/internal/realtime"
	"github.com/saaj376/SafeTrace/internal/traces"
)

// Publisher streams session events to connected guardians. Satisfied by
// *realtime.Hub; nil-safe via the noopPublisher.
type Publisher interface {
	Publish(eventType realtime.EventType, token string, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(realtime.EventType, string, interface{}) {}

// Service manages the SOS session lifecycle.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewService creates an SOS service. publisher may be nil.
func NewService(store Store, publisher Publisher) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Service{store: store, publisher: publisher, now: time.Now}
}

// Activate starts a new session at the given location and issues its share token.
func (s *Service) Activate(ctx context.Context, location geo.Coordinate) (*Session, error) {
	now := s.now()
	session := &Session{
		ID:           uuid.NewString(),
		Token:        uuid.NewString(),
		Status:       StatusActive,
		Origin:       location,
		LastLocation: location,
		StartedAt:    now,
		LastUpdateAt: now,
	}

	ctx, span := traces.StartSpan(ctx, "sos.Activate", traces.SessionID(session.ID))
	defer span.End()

	if err := s.store.Create(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create sos session")
		return nil, fmt.Errorf("activate sos session: %w", err)
	}

	metrics.ActiveSOSSessions.Inc()
	s.publisher.Publish(realtime.EventSOSActivated, session.Token, session)
	return session, nil
}

// UpdateLocation records the traveler's current position and streams it to
// guardians following the session.
func (s *Service) UpdateLocation(ctx context.Context, token string, location geo.Coordinate) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "sos.UpdateLocation")
	defer span.End()

	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusActive {
		return nil, ErrSessionEnded
	}
	span.SetAttributes(traces.SessionID(session.ID))

	session.LastLocation = location
	session.LastUpdateAt = s.now()
	session.UpdateCount++
	if err := s.store.Update(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update sos session")
		return nil, fmt.Errorf("update sos location: %w", err)
	}

	s.publisher.Publish(realtime.EventLocationUpdate, session.Token, map[string]interface{}{
		"location":     session.LastLocation,
		"update_count": session.UpdateCount,
		"at":           session.LastUpdateAt,
	})
	return session, nil
}

// Status returns the session for a token. Ended sessions are treated as gone
// so a stale share token reveals nothing.
func (s *Service) Status(ctx context.Context, token string) (*Session, error) {
	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusActive {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ReportAlert forwards a safety alert for an active session to its guardians.
func (s *Service) ReportAlert(ctx context.Context, token string, alert map[string]interface{}) error {
	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if session.Status != StatusActive {
		return ErrSessionEnded
	}

	s.publisher.Publish(realtime.EventSafetyAlert, session.Token, alert)
	return nil
}

// Deactivate ends a session. Ending an already-ended session is an error.
func (s *Service) Deactivate(ctx context.Context, token string) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "sos.Deactivate")
	defer span.End()

	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusActive {
		return nil, ErrSessionEnded
	}
	span.SetAttributes(traces.SessionID(session.ID))

	session.Status = StatusEnded
	session.EndedAt = s.now()
	if err := s.store.Update(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to end sos session")
		return nil, fmt.Errorf("deactivate sos session: %w", err)
	}

	metrics.ActiveSOSSessions.Dec()
	s.publisher.Publish(realtime.EventSOSEnded, session.Token, map[string]interface{}{
		"ended_at": session.EndedAt,
	})
	return session, nil
}

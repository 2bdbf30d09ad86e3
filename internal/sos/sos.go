// Package sos manages emergency sessions. Activating a session issues a share
// token a traveler hands to guardians, who then follow location updates until
// the session is deactivated.
package sos

import (
	"context"
	"errors"
	"time"

	"github.com/saaj376/SafeTrace/internal/geo"
)

var (
	// ErrSessionNotFound is returned for unknown or already-ended tokens.
	ErrSessionNotFound = errors.New("sos session not found")
	// ErrSessionEnded is returned when mutating a deactivated session.
	ErrSessionEnded = errors.New("sos session already ended")
)

// Status of an SOS session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is one emergency session. ID is internal; Token is the share token
// guardians use.
type Session struct {
	ID           string         `json:"id"`
	Token        string         `json:"token"`
	Status       Status         `json:"status"`
	Origin       geo.Coordinate `json:"origin"`
	LastLocation geo.Coordinate `json:"last_location"`
	UpdateCount  int            `json:"update_count"`
	StartedAt    time.Time      `json:"started_at"`
	LastUpdateAt time.Time      `json:"last_update_at"`
	EndedAt      time.Time      `json:"ended_at,omitempty"`
}

// Store persists SOS sessions.
type Store interface {
	Create(ctx context.Context, session *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, session *Session) error
}

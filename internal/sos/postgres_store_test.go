package sos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/testutil"
)

func newDBSession() *Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Session{
		ID:           uuid.NewString(),
		Token:        uuid.NewString(),
		Status:       StatusActive,
		Origin:       geo.Coordinate{Lat: 40.0, Lon: -74.0},
		LastLocation: geo.Coordinate{Lat: 40.0, Lon: -74.0},
		StartedAt:    now,
		LastUpdateAt: now,
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	session := newDBSession()
	require.NoError(t, store.Create(ctx, session))

	got, err := store.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, session.Origin, got.Origin)
	assert.True(t, got.EndedAt.IsZero())
}

func TestPostgresStoreUpdate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	session := newDBSession()
	require.NoError(t, store.Create(ctx, session))

	session.LastLocation = geo.Coordinate{Lat: 40.001, Lon: -74.001}
	session.UpdateCount = 3
	session.Status = StatusEnded
	session.EndedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Update(ctx, session))

	got, err := store.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, got.Status)
	assert.Equal(t, 3, got.UpdateCount)
	assert.InDelta(t, 40.001, got.LastLocation.Lat, 1e-9)
	assert.False(t, got.EndedAt.IsZero())
}

func TestPostgresStoreUnknownToken(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)

	_, err := store.GetByToken(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresStoreUpdateMissing(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)

	err := store.Update(context.Background(), newDBSession())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresStoreCountActive(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newDBSession()))
	require.NoError(t, store.Create(ctx, newDBSession()))

	ended := newDBSession()
	ended.Status = StatusEnded
	ended.EndedAt = time.Now().UTC()
	require.NoError(t, store.Create(ctx, ended))

	n, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

package sos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saaj376/SafeTrace/internal/geo"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL, so active emergency
// sessions survive a restart.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed SOS store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the sos_sessions table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sos_sessions (
			id             VARCHAR(36) PRIMARY KEY,
			token          VARCHAR(36) NOT NULL UNIQUE,
			status         VARCHAR(20) NOT NULL DEFAULT 'active',
			origin_lat     DOUBLE PRECISION NOT NULL,
			origin_lon     DOUBLE PRECISION NOT NULL,
			last_lat       DOUBLE PRECISION NOT NULL,
			last_lon       DOUBLE PRECISION NOT NULL,
			update_count   INTEGER NOT NULL DEFAULT 0,
			started_at     TIMESTAMPTZ NOT NULL,
			last_update_at TIMESTAMPTZ NOT NULL,
			ended_at       TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_sos_sessions_status ON sos_sessions(status);
	`)
	return err
}

// Create inserts a new session.
func (p *PostgresStore) Create(ctx context.Context, session *Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sos_sessions (
			id, token, status, origin_lat, origin_lon, last_lat, last_lon,
			update_count, started_at, last_update_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		session.ID, session.Token, string(session.Status),
		session.Origin.Lat, session.Origin.Lon,
		session.LastLocation.Lat, session.LastLocation.Lon,
		session.UpdateCount, session.StartedAt, session.LastUpdateAt,
		nullTimeOrValue(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert sos session: %w", err)
	}
	return nil
}

// GetByToken retrieves a session by its share token.
func (p *PostgresStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, token, status, origin_lat, origin_lon, last_lat, last_lon,
			update_count, started_at, last_update_at, ended_at
		FROM sos_sessions WHERE token = $1
	`, token)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sos session: %w", err)
	}
	return session, nil
}

// Update modifies a session's mutable fields.
func (p *PostgresStore) Update(ctx context.Context, session *Session) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE sos_sessions SET
			status         = $2,
			last_lat       = $3,
			last_lon       = $4,
			update_count   = $5,
			last_update_at = $6,
			ended_at       = $7
		WHERE id = $1
	`,
		session.ID, string(session.Status),
		session.LastLocation.Lat, session.LastLocation.Lon,
		session.UpdateCount, session.LastUpdateAt,
		nullTimeOrValue(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("update sos session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CountActive returns how many sessions are currently active, used to seed
// the active-sessions gauge after a restart.
func (p *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sos_sessions WHERE status = 'active'
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active sos sessions: %w", err)
	}
	return n, nil
}

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scannable) (*Session, error) {
	var s Session
	var status string
	var originLat, originLon, lastLat, lastLon float64
	var endedAt sql.NullTime

	err := row.Scan(
		&s.ID, &s.Token, &status, &originLat, &originLon, &lastLat, &lastLon,
		&s.UpdateCount, &s.StartedAt, &s.LastUpdateAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)
	s.Origin = geo.Coordinate{Lat: originLat, Lon: originLon}
	s.LastLocation = geo.Coordinate{Lat: lastLat, Lon: lastLon}
	if endedAt.Valid {
		s.EndedAt = endedAt.Time
	}
	return &s, nil
}

// nullTimeOrValue returns a sql.NullTime: valid if t is non-zero, null otherwise.
func nullTimeOrValue(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

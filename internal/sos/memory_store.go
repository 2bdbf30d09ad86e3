package sos

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory session store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory SOS store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:  make(map[string]*Session),
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session.
func (m *MemoryStore) Create(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	m.sessions[cp.ID] = &cp
	m.byToken[cp.Token] = &cp
	return nil
}

// GetByToken returns a copy of the session for a share token.
func (m *MemoryStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.byToken[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

// Update replaces a stored session.
func (m *MemoryStore) Update(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *session
	m.sessions[cp.ID] = &cp
	m.byToken[cp.Token] = &cp
	return nil
}

// Len reports how many sessions the store holds.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

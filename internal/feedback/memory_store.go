package feedback

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory feedback store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*SegmentFeedback
}

// NewMemoryStore creates a new in-memory feedback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]*SegmentFeedback)}
}

func (m *MemoryStore) Get(ctx context.Context, segmentID int64) (*SegmentFeedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fb, ok := m.records[segmentID]
	if !ok {
		return nil, ErrSegmentNotFound
	}
	cp := *fb
	return &cp, nil
}

func (m *MemoryStore) Put(ctx context.Context, fb *SegmentFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *fb
	m.records[fb.SegmentID] = &cp
	return nil
}

// Len returns the number of rated segments.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

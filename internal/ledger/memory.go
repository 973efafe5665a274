package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the in-process ledger driver. Unlike the coordinator's
// session history it is unbounded; the ledger is the durable trail, the
// history is the working set.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	byID    map[uuid.UUID]int
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]int)}
}

// Append stores a record. Appending the same session twice is an error;
// ledger records are immutable.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rec.SessionID]; exists {
		return fmt.Errorf("ledger: session %s already recorded", rec.SessionID)
	}
	s.byID[rec.SessionID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Get returns the record for a session id.
func (s *MemoryStore) Get(_ context.Context, sessionID uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[sessionID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s.records[i], nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close is a no-op for the memory driver.
func (s *MemoryStore) Close() error { return nil }

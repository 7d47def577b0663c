package directory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-process Directory for tests and single-instance
// runs. It mirrors the Postgres store's semantics, including expiry.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an in-memory directory. A zero ttl disables
// expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]Record),
	}
}

// Create registers a new connection record.
func (s *MemoryStore) Create(ctx context.Context, connectionID string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[connectionID]; exists {
		return fmt.Errorf("connection %s: %w", connectionID, ErrDuplicateConnection)
	}

	rec := Record{
		ConnectionID: connectionID,
		Attributes:   maps.Clone(attrs),
		CreatedAt:    s.now(),
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]string{}
	}
	if s.ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}

	s.records[connectionID] = rec
	return nil
}

// Delete removes a connection record; absent ids are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, connectionID)
	return nil
}

// Find returns ids of live records matching the filter.
func (s *MemoryStore) Find(ctx context.Context, filter Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var ids []string
	for id, rec := range s.records {
		if !rec.ExpiresAt.IsZero() && !rec.ExpiresAt.After(now) {
			continue
		}
		if filter.Matches(rec.Attributes) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PurgeExpired deletes records whose expiry has passed and returns the
// number removed.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for id, rec := range s.records {
		if !rec.ExpiresAt.IsZero() && !rec.ExpiresAt.After(now) {
			delete(s.records, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a session has no cached selection.
var ErrNotFound = errors.New("session selection not found")

// Store keeps one Selection per browsing session.
type Store interface {
	Get(ctx context.Context, sessionID string) (Selection, error)
	Set(ctx context.Context, sessionID string, sel Selection) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	sel     Selection
	expires time.Time
}

// MemoryStore is an in-process Store. A zero ttl keeps entries until deleted.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Selection, error) {
	s.mu.RLock()
	entry, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Selection{}, ErrNotFound
	}
	if !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		s.mu.Lock()
		delete(s.data, sessionID)
		s.mu.Unlock()
		return Selection{}, ErrNotFound
	}
	return entry.sel, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, sel Selection) error {
	entry := memoryEntry{sel: sel}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.data[sessionID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
	return nil
}

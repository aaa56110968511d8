package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

type entry struct {
	st      state.State
	expires time.Time
}

// InMemoryStore holds sessions in a map with an optional idle TTL.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (s *InMemoryStore) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

func (s *InMemoryStore) Get(_ context.Context, id string) (state.State, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return state.State{}, ErrNotFound
	}
	return e.st.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, st state.State) error {
	e := entry{st: st.Clone()}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[st.SessionID] = e
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// List returns live session IDs in sorted order and evicts expired ones.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

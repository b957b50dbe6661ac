// Package session keeps per-player state for connected players. Entries
// are created by Open and dropped by Close.
package session

import (
	"sync"

	"github.com/google/uuid"
)

type Store[S any] struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]S
	factory func() S
}

func New[S any](factory func() S) *Store[S] {
	return &Store[S]{
		entries: make(map[uuid.UUID]S),
		factory: factory,
	}
}

// Open returns the player's state, creating it when absent. The bool is
// true when a new entry was created.
func (s *Store[S]) Open(id uuid.UUID) (S, bool) {
	s.mu.RLock()
	st, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return st, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.entries[id]; ok {
		return st, false
	}
	st = s.factory()
	s.entries[id] = st
	return st, true
}

func (s *Store[S]) Get(id uuid.UUID) (S, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[id]
	return st, ok
}

// Put replaces the player's state.
func (s *Store[S]) Put(id uuid.UUID, st S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = st
}

// PutIfAbsent stores st unless the player already has a state. It returns
// the state now held and whether st was the one stored.
func (s *Store[S]) PutIfAbsent(id uuid.UUID, st S) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[id]; ok {
		return cur, false
	}
	s.entries[id] = st
	return st, true
}

func (s *Store[S]) Close(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *Store[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store[S]) IDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}

package repository

import "sync"

// Store is an insertion-ordered keyed collection safe for concurrent use.
// Entities are never removed; iteration order is the order of insertion.
type Store[T any] struct {
	mu    sync.RWMutex
	order []string
	data  map[string]T
}

// NewStore returns an empty store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{data: map[string]T{}}
}

// Insert adds v under id. It returns false and leaves the store untouched when
// id is already present.
func (s *Store[T]) Insert(id string, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; ok {
		return false
	}
	s.data[id] = v
	s.order = append(s.order, id)
	return true
}

// Get returns the entity stored under id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[id]
	return v, ok
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}

// Len returns the number of entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// List returns the entities in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]T, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.data[id])
	}
	return res
}

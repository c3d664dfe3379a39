// Package memory stores snapshots in-memory for tests and development.
package memory

import (
	"context"
	"sync"
)

// Store keeps saved pages in a map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory snapshot store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Save copies and stores the data under the object name.
func (s *Store) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Get returns the stored data for a name, or nil.
func (s *Store) Get(objectName string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[objectName]
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Package memory stores sample content in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/maltrieve/internal/storage"
)

// Store keeps samples in a map keyed by hash and returns pseudo URIs.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes int
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Store persists a copy of data under hash.
func (s *Store) Store(_ context.Context, hash string, data []byte) (string, error) {
	if err := storage.ValidateHash(hash); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[hash]; !ok {
		s.data[hash] = append([]byte(nil), data...)
		s.writes++
	}
	return fmt.Sprintf("memory://%s", hash), nil
}

// Remove drops the sample for hash.
func (s *Store) Remove(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, hash)
	return nil
}

// Get returns the stored bytes for hash.
func (s *Store) Get(hash string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[hash]
	return data, ok
}

// Len returns the number of stored samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Writes returns how many distinct writes happened, including removed ones.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

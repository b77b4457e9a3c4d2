// Package seen provides the concurrency-safe string sets used to remember
// admitted URLs and stored content hashes.
package seen

import (
	"sort"
	"sync"
)

// Set is a mutex-guarded set of strings. The zero value is not usable; call New.
type Set struct {
	mu    sync.Mutex
	items map[string]struct{}
}

// New returns a Set seeded with items.
func New(items ...string) *Set {
	s := &Set{items: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.items[item] = struct{}{}
	}
	return s
}

// Add inserts item and reports whether it was absent. The check and the insert
// happen under one lock, so exactly one of several concurrent callers adding
// the same item gets true.
func (s *Set) Add(item string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item]; ok {
		return false
	}
	s.items[item] = struct{}{}
	return true
}

// Contains reports whether item is present.
func (s *Set) Contains(item string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[item]
	return ok
}

// Remove deletes item. It is used to release a claim when the work it guarded failed.
func (s *Set) Remove(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, item)
}

// Len returns the number of items.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sorted returns a sorted copy of the members.
func (s *Set) Sorted() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.items))
	for item := range s.items {
		out = append(out, item)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

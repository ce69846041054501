// Package proverb holds the process-wide proverb list and the tools that read
// and mutate it.
package proverb

import (
	"sync"

	"github.com/hupe1980/proverbs/core"
)

// Store is the in-memory ProverbStore. A single RWMutex serializes all access;
// every method copies on the way in and out so callers never share the
// backing array.
type Store struct {
	mu    sync.RWMutex
	items []string
}

var _ core.ProverbStore = (*Store)(nil)

// NewStore creates a store seeded with initial.
func NewStore(initial ...string) *Store {
	return &Store{items: append([]string{}, initial...)}
}

// GetAll returns a copy of the current list.
func (s *Store) GetAll() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.items...)
}

// Append adds items to the end of the list.
func (s *Store) Append(items []string) core.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, items...)

	return core.StateSnapshot{Proverbs: append([]string{}, s.items...)}
}

// Replace discards the list and stores a copy of items.
func (s *Store) Replace(items []string) core.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]string{}, items...)

	return core.StateSnapshot{Proverbs: append([]string{}, s.items...)}
}

// Len returns the number of stored proverbs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

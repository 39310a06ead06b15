package memory

import (
	"context"
	"sync"

	"rewards/internal/core"
	"rewards/internal/records"
)

// Store keeps the table in process memory. Used for tests and demos.
type Store struct {
	mu    sync.Mutex
	saved bool
	items core.Table
	saves int
	// FailSave, when set, is returned by Save instead of storing.
	FailSave error
	// FailLoad, when set, makes Load report the table as unreadable.
	FailLoad error
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewWith returns a store that already holds t, as if it had been saved.
func NewWith(t core.Table) *Store {
	return &Store{saved: true, items: t.Clone()}
}

// Load implements records.Loader
func (s *Store) Load(_ context.Context) records.LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoad != nil {
		return records.UnreadableResult(s.FailLoad)
	}
	if !s.saved {
		return records.MissingResult()
	}
	return records.LoadedResult(s.items.Clone())
}

// Save implements records.Saver
func (s *Store) Save(_ context.Context, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.items = t.WithRecomputedWeeks()
	s.saved = true
	s.saves++
	return nil
}

// Saves returns how many successful saves have happened.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

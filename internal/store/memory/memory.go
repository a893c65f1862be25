// Package memory provides an in-memory ReadStateStore for development and
// tests. State does not survive restarts.
package memory

import (
	"context"
	"sync"

	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

// Ensure Store implements store.ReadStateStore.
var _ store.ReadStateStore = (*Store)(nil)

// Store keeps per-user read sets in process memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]map[types.Identity]struct{}
	err   error
}

// New creates an empty in-memory read-state store.
func New() *Store {
	return &Store{users: make(map[string]map[types.Identity]struct{})}
}

// SetFailure makes every subsequent operation return err until called with
// nil. Used by tests to exercise persistence failure and rollback paths.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) IsRead(_ context.Context, userID string, id types.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.users[userID][id]
	return ok, nil
}

func (s *Store) MarkRead(_ context.Context, userID string, id types.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.markLocked(userID, id)
	return nil
}

func (s *Store) MarkReadBatch(_ context.Context, userID string, ids []types.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, id := range ids {
		s.markLocked(userID, id)
	}
	return nil
}

func (s *Store) markLocked(userID string, id types.Identity) {
	set, ok := s.users[userID]
	if !ok {
		set = make(map[types.Identity]struct{})
		s.users[userID] = set
	}
	set[id] = struct{}{}
}

// ReadIdentities returns a copy of the user's read set so callers can
// overlay it without holding the store lock.
func (s *Store) ReadIdentities(_ context.Context, userID string) (map[types.Identity]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	set := s.users[userID]
	out := make(map[types.Identity]struct{}, len(set))
	for id := range set {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

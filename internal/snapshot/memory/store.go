// Package memory implements an in-memory snapshot store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Store keeps snapshots in memory, newest last. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]policy.Snapshot
}

// New returns an empty in-memory snapshot store.
func New() *Store {
	return &Store{snapshots: make(map[string][]policy.Snapshot)}
}

// Save appends the snapshot to the source's history.
func (s *Store) Save(_ context.Context, snap policy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SourceCode] = append(s.snapshots[snap.SourceCode], snap)
	return nil
}

// LatestHash returns the hash of the most recently saved snapshot.
func (s *Store) LatestHash(_ context.Context, sourceCode string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.snapshots[sourceCode]
	if len(history) == 0 {
		return "", false, nil
	}
	return history[len(history)-1].Hash, true, nil
}

// Count reports how many snapshots exist for the source.
func (s *Store) Count(sourceCode string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[sourceCode])
}

// Package memory provides an in-memory policy store used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// PolicyStore collects records in memory. Safe for concurrent use.
type PolicyStore struct {
	mu      sync.RWMutex
	records []policy.Extracted
}

// NewPolicyStore returns an empty store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{}
}

// Persist appends the record.
func (s *PolicyStore) Persist(_ context.Context, record policy.Extracted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything persisted so far.
func (s *PolicyStore) Records() []policy.Extracted {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]policy.Extracted(nil), s.records...)
}

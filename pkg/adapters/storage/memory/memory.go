package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aescanero/dapub/pkg/domain"
)

// StateStore implements ports.StateStore in memory.
// Snapshots are kept serialized so a reload behaves like a real store.
type StateStore struct {
	data []byte
	mu   sync.RWMutex
}

// NewStateStore creates a new in-memory state store
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Get returns the stored snapshot or nil
func (s *StateStore) Get(ctx context.Context) (*domain.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, nil
	}

	st, err := domain.DecodeState(s.data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return st, nil
}

// Set replaces the stored snapshot
func (s *StateStore) Set(ctx context.Context, st *domain.JobState) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
	return nil
}

// Clear removes the stored snapshot
func (s *StateStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = nil
	return nil
}

package settings

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps settings in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	settings *Settings
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return Default(), nil
	}
	out := *s.settings
	out.TrackingDisabled = slices.Clone(out.TrackingDisabled)
	return out, nil
}

// Merge implements Store
func (s *MemoryStore) Merge(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := Default()
	if s.settings != nil {
		current = *s.settings
	}
	next := u.Apply(current)
	s.settings = &next
	return nil
}

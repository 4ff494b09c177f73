package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Create(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e = prepare(e)
	if _, exists := s.entries[e.ID]; exists {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryExists, e.ID)
	}
	s.entries[e.ID] = &e
	return copyEntry(&e), nil
}

func (s *MemoryStore) SetState(_ context.Context, id, state, errMsg string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	transition(e, state, errMsg)
	return copyEntry(e), nil
}

func (s *MemoryStore) SetResidual(_ context.Context, id string, norm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e.ResidualNorm = norm
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return copyEntry(e), nil
}

func (s *MemoryStore) List(_ context.Context, scenarioID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ScenarioID == scenarioID {
			out = append(out, copyEntry(e))
		}
	}
	slices.SortFunc(out, compareEntries)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyEntry(e *Entry) Entry {
	out := *e
	out.Parameters = append([]float64(nil), e.Parameters...)
	return out
}

func compareEntries(a, b Entry) int {
	if a.Iteration != b.Iteration {
		return a.Iteration - b.Iteration
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

package store

import (
	"context"
	"sync"

	"github.com/eastress/ea-stress-lab/domain"
)

// MemStore is an in-memory Store, grounded on the teacher's MemStore
// (graph/store/memory.go). Suitable for tests and single-process runs;
// state is lost when the process exits.
type MemStore struct {
	mu    sync.RWMutex
	byID  map[string][]byte
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string][]byte)}
}

// Save serializes state via domain.Encode and stores a private copy of
// the bytes, so a caller mutating their own *WorkflowState afterwards
// cannot corrupt what was persisted.
func (m *MemStore) Save(_ context.Context, state *domain.WorkflowState) error {
	data, err := domain.Encode(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[state.WorkflowID] = data
	return nil
}

func (m *MemStore) Load(_ context.Context, workflowID string) (*domain.WorkflowState, error) {
	m.mu.RLock()
	data, ok := m.byID[workflowID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return domain.Decode(data)
}

func (m *MemStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	return out, nil
}

func (m *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)

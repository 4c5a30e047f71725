package store

import (
	"context"
	"slices"
	"sync"

	"github.com/ahrav/go-thurstone/internal/ports"
)

const backendMemory = "memory"

// MemoryStore keeps sessions in process memory. Sessions are stored
// encoded, so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Save implements ports.SessionStore.
func (m *MemoryStore) Save(ctx context.Context, s *ports.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSession(s)
	if err != nil {
		return ports.NewStoreError(backendMemory, "save", sessionID(s), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = data
	return nil
}

// Load implements ports.SessionStore.
func (m *MemoryStore) Load(ctx context.Context, id string) (*ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(backendMemory, id)
	}
	return decodeSession(data)
}

// Delete implements ports.SessionStore.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List implements ports.SessionStore.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

// Close implements ports.SessionStore.
func (m *MemoryStore) Close() error { return nil }

func sessionID(s *ports.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

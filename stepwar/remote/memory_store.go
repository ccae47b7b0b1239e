package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the in-process DocumentStore, used in tests and when the
// engine runs without a configured backend.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc, nil
}

func (m *MemoryStore) Put(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]json.RawMessage)
	}
	m.collections[collection][id] = raw
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := m.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) List(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.collections[collection]))
	for id, doc := range m.collections[collection] {
		out[id] = doc
	}
	return out, nil
}

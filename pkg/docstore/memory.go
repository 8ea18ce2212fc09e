package docstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store backend. A single mutex
// serializes read-modify-write cycles, so the optimistic-write race of
// the persistent backends cannot occur here.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
	}
}

func memoryKey(collection, id string) string {
	return collection + "/" + id
}

// FindOne returns a copy of the stored document.
func (s *MemoryStore) FindOne(ctx context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[memoryKey(collection, id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// FindOneAndUpdate applies update under the store lock.
func (s *MemoryStore) FindOneAndUpdate(ctx context.Context, collection, id string, update UpdateFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(collection, id)
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}

	current := make([]byte, len(doc))
	copy(current, doc)

	updated, err := update(current)
	if err != nil {
		return nil, err
	}

	stored := make([]byte, len(updated))
	copy(stored, updated)
	s.docs[key] = stored

	return updated, nil
}

// Save upserts the document.
func (s *MemoryStore) Save(ctx context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(doc))
	copy(stored, doc)
	s.docs[memoryKey(collection, id)] = stored
	return nil
}

// Delete removes the document.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(collection, id)
	if _, ok := s.docs[key]; !ok {
		return ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

// HealthCheck always succeeds for the in-memory backend.
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// MemoryStore is an in-process artifact store for tests and ephemeral
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[uuid.UUID][]byte
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[uuid.UUID][]byte)}
}

// Store keeps a copy of the artifact.
func (s *MemoryStore) Store(ctx context.Context, id uuid.UUID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[id] = append([]byte(nil), data...)
	return nil
}

// Fetch returns a copy of a stored artifact.
func (s *MemoryStore) Fetch(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[id]
	if !ok {
		return nil, interfaces.ErrArtifactNotFound
	}
	return append([]byte(nil), data...), nil
}

// LocationURI returns the URI that identifies this store.
func (s *MemoryStore) LocationURI() string {
	return "memory://"
}

package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryStore() StateStore {
	return &memoryStore{data: make(map[string]map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, learnerID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[learnerID][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(ctx context.Context, learnerID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[learnerID] == nil {
		s.data[learnerID] = make(map[string]string)
	}
	s.data[learnerID][key] = value
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, learnerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[learnerID], key)
	return nil
}

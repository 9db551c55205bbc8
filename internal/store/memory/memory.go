// Package memory provides a thread-safe in-memory store.Backend.
package memory

import (
	"sync"

	"github.com/naveenspark/shopdrop/internal/store"
)

// Store is a thread-safe in-memory implementation of store.Backend.
// Suitable for tests and for sessions that must not touch disk.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ store.Backend = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[namespace]; !ok {
		s.data[namespace] = make(map[string][]byte)
	}
	s.data[namespace][key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

func (s *Store) Close() error { return nil }

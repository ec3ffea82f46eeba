// Package memory provides an in-process persist.Storage backed by a map. It
// is intended for tests, examples and short-lived processes.
package memory

import (
	"fmt"
	"sort"
	"sync"

	persist "github.com/goliatone/go-persist"
)

// Store is a concurrency safe in-memory storage service. The zero value is
// not usable; construct one with New.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
	used  int
}

// Option configures a Store.
type Option func(*Store)

// WithQuota limits the total size in bytes of keys plus values. A write that
// would exceed it fails with persist.ErrQuotaExceeded and leaves the store
// unchanged. Zero or a negative quota means unlimited.
func WithQuota(bytes int) Option {
	return func(s *Store) {
		s.quota = bytes
	}
}

// WithItems seeds the store with items.
func WithItems(items map[string]string) Option {
	return func(s *Store) {
		for key, value := range items {
			s.items[key] = value
			s.used += len(key) + len(value)
		}
	}
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{items: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GetItem implements persist.Storage.
func (s *Store) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

// SetItem implements persist.Storage.
func (s *Store) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used + len(value)
	if previous, ok := s.items[key]; ok {
		used -= len(previous)
	} else {
		used += len(key)
	}
	if s.quota > 0 && used > s.quota {
		return fmt.Errorf("memory: set %q (%d of %d bytes): %w", key, used, s.quota, persist.ErrQuotaExceeded)
	}
	s.items[key] = value
	s.used = used
	return nil
}

// RemoveItem implements persist.Remover. Removing a missing key is a no-op.
func (s *Store) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.items[key]; ok {
		s.used -= len(key) + len(previous)
		delete(s.items, key)
	}
	return nil
}

// Keys implements persist.Lister. Keys are returned sorted.
func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Used reports the bytes counted against the quota.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

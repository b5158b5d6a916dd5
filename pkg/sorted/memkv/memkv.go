// Package memkv is an in-process, map-backed sorted.KeyValue used by
// tests. It is not durable across process restarts.
package memkv

import (
	"sort"
	"sync"

	"github.com/gekkofs/gekkofs/pkg/sorted"
)

type storage struct {
	mu   sync.RWMutex
	m    map[string]string
	keys []string // kept sorted
}

// New returns an empty, in-memory sorted.KeyValue.
func New() sorted.KeyValue {
	return &storage{m: make(map[string]string)}
}

func (s *storage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return "", sorted.ErrNotFound
	}
	return v, nil
}

func (s *storage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
	return nil
}

func (s *storage) setLocked(key, value string) {
	if _, exists := s.m[key]; !exists {
		idx := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[idx+1:], s.keys[idx:])
		s.keys[idx] = key
	}
	s.m[key] = value
}

func (s *storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
	return nil
}

func (s *storage) deleteLocked(key string) {
	if _, exists := s.m[key]; !exists {
		return
	}
	delete(s.m, key)
	idx := sort.SearchStrings(s.keys, key)
	if idx < len(s.keys) && s.keys[idx] == key {
		s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
	}
}

func (s *storage) BeginBatch() sorted.BatchMutation {
	return sorted.NewBatchMutation()
}

func (s *storage) CommitBatch(b sorted.BatchMutation) error {
	muts, ok := b.(interface{ Mutations() []sorted.Mutation })
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range muts.Mutations() {
		if m.IsDelete() {
			s.deleteLocked(m.Key())
		} else {
			s.setLocked(m.Key(), m.Value())
		}
	}
	return nil
}

func (s *storage) Find(key string) sorted.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := sort.SearchStrings(s.keys, key)
	keys := make([]string, len(s.keys)-start)
	copy(keys, s.keys[start:])
	return &iter{s: s, keys: keys, pos: -1}
}

func (s *storage) Close() error { return nil }

type iter struct {
	s    *storage
	keys []string
	pos  int
}

func (it *iter) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iter) Key() string { return it.keys[it.pos] }

func (it *iter) Value() string {
	it.s.mu.RLock()
	defer it.s.mu.RUnlock()
	return it.s.m[it.keys[it.pos]]
}

func (it *iter) Close() error { return nil }

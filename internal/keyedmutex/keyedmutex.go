// Package keyedmutex provides a striped lock keyed by string, used to
// serialize read-modify-write sequences against the same metadata key
// without serializing unrelated keys. goleveldb has no merge-operator
// primitive of its own, so the metadata package uses this to make its
// create/increase_size/decrease_size operators atomic.
package keyedmutex

import (
	"hash/fnv"
	"sync"
)

// Map is a fixed set of mutexes; String picks one deterministically
// by key so that operations on the same key always contend on the
// same lock, while operations on different keys usually don't.
type Map struct {
	locks []sync.Mutex
}

// New returns a Map with n stripes. n should be a small power of two;
// a larger n reduces false contention between unrelated keys.
func New(n int) *Map {
	if n <= 0 {
		n = 1
	}
	return &Map{locks: make([]sync.Mutex, n)}
}

func (m *Map) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.locks[h.Sum32()%uint32(len(m.locks))]
}

// Lock acquires the stripe guarding key.
func (m *Map) Lock(key string) { m.stripe(key).Lock() }

// Unlock releases the stripe guarding key.
func (m *Map) Unlock(key string) { m.stripe(key).Unlock() }

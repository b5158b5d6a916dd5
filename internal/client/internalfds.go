package client

import "sync"

// InternalFDs tracks the real OS file descriptors our own process
// holds open for bookkeeping, so an accidental collision between a
// bookkeeping fd and one handed out elsewhere in the process is
// caught rather than silently corrupting state. gkfsd registers its
// LIBGKFS_LOG_OUTPUT file this way; the leveldb lock file and the
// hosts-file handle are opened and released internally by
// goleveldb/pkg/hostsfile and never surface a long-lived fd worth
// tracking here.
type InternalFDs struct {
	mu   sync.Mutex
	seen map[int]string // fd -> description, for collision diagnostics
}

// NewInternalFDs returns an empty InternalFDs set.
func NewInternalFDs() *InternalFDs {
	return &InternalFDs{seen: make(map[int]string)}
}

// Register records that fd is in use for description. It reports
// false if fd was already registered (a collision).
func (s *InternalFDs) Register(fd int, description string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[fd]; exists {
		return false
	}
	s.seen[fd] = description
	return true
}

// Release removes fd from the set.
func (s *InternalFDs) Release(fd int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, fd)
}

// Contains reports whether fd is currently registered.
func (s *InternalFDs) Contains(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[fd]
	return ok
}

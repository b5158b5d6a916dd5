package client

import (
	"fmt"
	"sync"
)

// FdTable maps a handle id to its open file/dir state. Under FUSE the
// kernel allocates the integer fd the application sees; bazil.org/fuse
// hands our Node/Handle implementations an opaque fuse.HandleID
// instead, so FdTable keys on uint64 rather than a raw OS int. The
// id generator wraps at its maximum rather than growing unboundedly
// and never reissues a live id.
type FdTable struct {
	mu      sync.Mutex
	files   map[uint64]*OpenFile
	dirs    map[uint64]*OpenDir
	next    uint64
	maxSeen uint64
}

// NewFdTable returns an empty FdTable. Handle ids start at 1; 0 is
// never issued so it can serve as a "no handle" sentinel.
func NewFdTable() *FdTable {
	return &FdTable{
		files: make(map[uint64]*OpenFile),
		dirs:  make(map[uint64]*OpenDir),
		next:  1,
	}
}

// allocate returns a fresh id, wrapping back to 1 if the counter
// reaches its maximum rather than growing past it.
func (t *FdTable) allocate() uint64 {
	for {
		id := t.next
		if t.next == ^uint64(0) {
			t.next = 1
		} else {
			t.next++
		}
		if id == 0 {
			continue
		}
		if _, used := t.files[id]; used {
			continue
		}
		if _, used := t.dirs[id]; used {
			continue
		}
		return id
	}
}

// OpenFile registers f under a fresh id and returns it.
func (t *FdTable) OpenFile(f *OpenFile) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.allocate()
	t.files[id] = f
	return id
}

// OpenDir registers d under a fresh id and returns it.
func (t *FdTable) OpenDir(d *OpenDir) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.allocate()
	t.dirs[id] = d
	return id
}

// File returns the OpenFile registered under id, if any.
func (t *FdTable) File(id uint64) (*OpenFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[id]
	return f, ok
}

// Dir returns the OpenDir registered under id, if any.
func (t *FdTable) Dir(id uint64) (*OpenDir, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.dirs[id]
	return d, ok
}

// Release removes id from the table, regardless of whether it was a
// file or a directory handle. It is a no-op if id is not present.
func (t *FdTable) Release(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, id)
	delete(t.dirs, id)
}

// Len reports the number of currently open handles, for tests and
// diagnostics.
func (t *FdTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files) + len(t.dirs)
}

func (t *FdTable) String() string {
	return fmt.Sprintf("FdTable{files=%d dirs=%d}", len(t.files), len(t.dirs))
}

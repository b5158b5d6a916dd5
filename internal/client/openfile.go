package client

import "sync"

// OpenFile is the per-open-instance state for a regular file handle.
// pos and flags each have independent locking: two concurrent pread
// calls on the same handle must not serialize behind each other's
// position bookkeeping any more than necessary.
type OpenFile struct {
	Path string

	posMu sync.Mutex
	pos   int64

	flagsMu sync.Mutex
	flags   int
}

// NewOpenFile returns an OpenFile for path opened with flags, position 0.
func NewOpenFile(path string, flags int) *OpenFile {
	return &OpenFile{Path: path, flags: flags}
}

// Pos returns the current file position.
func (f *OpenFile) Pos() int64 {
	f.posMu.Lock()
	defer f.posMu.Unlock()
	return f.pos
}

// SetPos sets the file position.
func (f *OpenFile) SetPos(pos int64) {
	f.posMu.Lock()
	defer f.posMu.Unlock()
	f.pos = pos
}

// Advance moves the position forward by n bytes and returns the new
// position, atomically with respect to other Advance/SetPos calls.
func (f *OpenFile) Advance(n int64) int64 {
	f.posMu.Lock()
	defer f.posMu.Unlock()
	f.pos += n
	return f.pos
}

// Flags returns the open flags this handle was created with.
func (f *OpenFile) Flags() int {
	f.flagsMu.Lock()
	defer f.flagsMu.Unlock()
	return f.flags
}

// DirEntry is one child of a directory snapshot: a name and whether
// that child is itself a directory.
type DirEntry struct {
	Name  string
	IsDir bool
}

// OpenDir is the per-open-instance state for a directory handle: a
// snapshot of the directory's entries taken at opendir time, plus a
// read cursor into it.
type OpenDir struct {
	Path string

	mu      sync.Mutex
	entries []DirEntry
	cursor  int
}

// NewOpenDir returns an OpenDir for path with the given entry
// snapshot.
func NewOpenDir(path string, entries []DirEntry) *OpenDir {
	return &OpenDir{Path: path, entries: entries}
}

// Next returns the next entry and true, or the zero DirEntry and
// false at the end of the snapshot.
func (d *OpenDir) Next() (DirEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor >= len(d.entries) {
		return DirEntry{}, false
	}
	e := d.entries[d.cursor]
	d.cursor++
	return e, true
}

// All returns the full entry snapshot, for callers (like the FUSE
// ReadDirAll handler) that want it in one shot rather than via the
// getdents-style cursor.
func (d *OpenDir) All() []DirEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries
}

// Rewind resets the read cursor to the start of the snapshot.
func (d *OpenDir) Rewind() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = 0
}

// Package chunkstore implements the daemon-side on-disk layout for
// file chunk data: a per-file directory of fixed-size chunk files
// rooted under the daemon's data directory, with path escaping,
// chunk I/O, and truncation-from-id support.
package chunkstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/gekkofs/gekkofs/pkg/chunk"
)

// Store roots chunk storage at a directory on the local filesystem.
type Store struct {
	root string
}

// Open returns a Store rooted at root, which must already exist and
// be writable.
func Open(root string) (*Store, error) {
	if err := accessWR(root); err != nil {
		return nil, fmt.Errorf("chunkstore: insufficient permissions on %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

func accessWR(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.R_OK)
}

// escapePath returns path (an absolute mount-relative path) with its
// leading slash stripped and all remaining "/" replaced by ":", so
// one file's chunks share one flat directory.
func escapePath(path string) string {
	return strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", ":")
}

func (s *Store) chunkDir(path string) string {
	return filepath.Join(s.root, escapePath(path))
}

func (s *Store) chunkFile(path string, chunkID int64) string {
	return filepath.Join(s.chunkDir(path), strconv.FormatInt(chunkID, 10))
}

func (s *Store) initChunkSpace(path string) error {
	err := os.Mkdir(s.chunkDir(path), 0750)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	return nil
}

// WriteChunk writes size bytes from r into chunk chunkID of path at
// intra-chunk offset off, creating the chunk directory and file as
// needed. offset+size must be <= chunk.Size.
func (s *Store) WriteChunk(path string, chunkID int64, off int64, size int64, r io.Reader) (int64, error) {
	if off+size > chunk.Size {
		return 0, fmt.Errorf("chunkstore: write range [%d,%d) exceeds chunk size %d", off, off+size, chunk.Size)
	}
	if err := s.initChunkSpace(path); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(s.chunkFile(path, chunkID), os.O_WRONLY|os.O_CREATE, 0640)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var written int64
	for written < size {
		n, err := f.WriteAt(buf[written:], off+written)
		if n > 0 {
			written += int64(n)
		}
		if err != nil {
			if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return written, err
		}
	}
	return written, nil
}

// ReadChunk reads up to size bytes of chunk chunkID of path at
// intra-chunk offset off into w, stopping early (without error) at
// end-of-file. A missing chunk file is treated as entirely sparse
// and contributes zero bytes without error.
func (s *Store) ReadChunk(path string, chunkID int64, off int64, size int64, w io.Writer) (int64, error) {
	f, err := os.Open(s.chunkFile(path, chunkID))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, size)
	var readTotal int64
	for readTotal < size {
		n, err := f.ReadAt(buf[readTotal:], off+readTotal)
		if n > 0 {
			readTotal += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return readTotal, err
		}
		if n == 0 {
			break
		}
	}
	if readTotal > 0 {
		if _, err := w.Write(buf[:readTotal]); err != nil {
			return readTotal, err
		}
	}
	return readTotal, nil
}

// TruncateChunkSpace removes every chunk file of path whose id is >=
// fromID. If leftPad is nonzero, chunk fromID-1 (the new last chunk)
// is additionally shrunk to leftPad bytes; if this store holds no
// such chunk file (another host owns it, or it is sparse), there is
// nothing to shrink and that is not an error.
func (s *Store) TruncateChunkSpace(path string, fromID int64, leftPad int64) error {
	dir := s.chunkDir(path)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var firstErr error
	for _, e := range entries {
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if id >= fromID {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if leftPad != 0 && fromID > 0 {
		err := os.Truncate(s.chunkFile(path, fromID-1), leftPad)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// RemoveChunkDir deletes path's entire chunk directory. Idempotent:
// removing an absent directory is not an error.
func (s *Store) RemoveChunkDir(path string) error {
	return os.RemoveAll(s.chunkDir(path))
}

// Stat reports the chunk size this store uses and the total/free
// chunk capacity of the underlying filesystem.
type Stat struct {
	ChunkSize  int64
	ChunkTotal uint64
	ChunkFree  uint64
}

// ChunkStat statfs's the root directory and reports capacity in units
// of whole chunks.
func (s *Store) ChunkStat() (Stat, error) {
	var sfs unix.Statfs_t
	if err := unix.Statfs(s.root, &sfs); err != nil {
		return Stat{}, err
	}
	bsize := uint64(sfs.Bsize)
	return Stat{
		ChunkSize:  chunk.Size,
		ChunkTotal: (bsize * uint64(sfs.Blocks)) / uint64(chunk.Size),
		ChunkFree:  (bsize * uint64(sfs.Bavail)) / uint64(chunk.Size),
	}, nil
}

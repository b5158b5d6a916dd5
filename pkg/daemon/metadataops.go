package daemon

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/gekkofs/gekkofs/pkg/chunkstore"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/rpcproto"
	"github.com/gekkofs/gekkofs/pkg/sorted"
)

// MetadataOps wraps a metadata.Store and the local chunkstore with
// the request-level operations the RPC surface exposes (create, stat,
// remove, update-size, get-dirents), mapping store errors onto POSIX
// errno.
type MetadataOps struct {
	store  *metadata.Store
	chunks *chunkstore.Store
}

// NewMetadataOps returns a MetadataOps backed by store and chunks.
func NewMetadataOps(store *metadata.Store, chunks *chunkstore.Store) *MetadataOps {
	return &MetadataOps{store: store, chunks: chunks}
}

// Create creates a new regular file or directory entry at path. It
// returns EEXIST if path is already present.
func (m *MetadataOps) Create(path string, mode os.FileMode) *rpcproto.Errno {
	now := time.Now().Unix()
	md := metadata.Metadata{Mode: mode, Atime: now, Mtime: now, Ctime: now, LinkCount: 1}
	if mode.IsDir() {
		md.LinkCount = 2
	}
	created, err := m.store.Create(path, md)
	if err != nil {
		return rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	if !created {
		return rpcproto.NewErrno(syscall.EEXIST, "")
	}
	return nil
}

// Stat returns the serialized metadata record for path.
func (m *MetadataOps) Stat(path string) (string, *rpcproto.Errno) {
	md, err := m.store.Get(path)
	if err == nil {
		return metadata.Serialize(md, m.store.Config()), nil
	}
	return "", statErrno(err)
}

// Remove deletes this daemon's metadata entry for path, if present,
// and the local chunk directory for it. Both halves are idempotent: a
// remove for a file with data is broadcast to every host, and most
// recipients hold chunks without the metadata key, the key without
// chunks, or neither. Whether path existed at all is the client's
// question to answer (it stats before removing), not this daemon's.
func (m *MetadataOps) Remove(path string) *rpcproto.Errno {
	if err := m.store.Remove(path); err != nil && !errors.Is(err, sorted.ErrNotFound) {
		return rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	if err := m.chunks.RemoveChunkDir(path); err != nil {
		return rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	return nil
}

// Update implements update_metadentry: md's fields named by flags
// overwrite the stored record's, the rest keep their stored values.
func (m *MetadataOps) Update(path string, md metadata.Metadata, flags rpcproto.UpdateFlags) *rpcproto.Errno {
	err := m.store.Update(path, func(cur metadata.Metadata) metadata.Metadata {
		if flags.Mode {
			cur.Mode = md.Mode
		}
		if flags.Atime {
			cur.Atime = md.Atime
		}
		if flags.Mtime {
			cur.Mtime = md.Mtime
		}
		if flags.Ctime {
			cur.Ctime = md.Ctime
		}
		return cur
	})
	if err != nil {
		return statErrno(err)
	}
	return nil
}

// IncreaseSize implements update_metadentry_size.
func (m *MetadataOps) IncreaseSize(path string, size int64, append bool) (int64, *rpcproto.Errno) {
	n, err := m.store.IncreaseSize(path, size, append)
	if err != nil {
		return 0, statErrno(err)
	}
	return n, nil
}

// DecreaseSize implements decr_size.
func (m *MetadataOps) DecreaseSize(path string, size int64) *rpcproto.Errno {
	if err := m.store.DecreaseSize(path, size); err != nil {
		return statErrno(err)
	}
	return nil
}

// GetSize returns path's current size.
func (m *MetadataOps) GetSize(path string) (int64, *rpcproto.Errno) {
	md, err := m.store.Get(path)
	if err != nil {
		return 0, statErrno(err)
	}
	return md.Size, nil
}

// Dirents implements get_dirents.
func (m *MetadataOps) Dirents(path string) ([]metadata.Dirent, *rpcproto.Errno) {
	ents, err := m.store.Dirents(path)
	if err != nil {
		return nil, rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	return ents, nil
}

// Symlink creates a symlink entry at path pointing to target.
func (m *MetadataOps) Symlink(path, target string) *rpcproto.Errno {
	if !m.store.Config().HasSymlinks {
		return rpcproto.NewErrno(syscall.ENOTSUP, "symlinks disabled")
	}
	now := time.Now().Unix()
	md := metadata.NewSymlink(0777, target)
	md.Atime, md.Mtime, md.Ctime = now, now, now
	created, err := m.store.Create(path, md)
	if err != nil {
		return rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	if !created {
		return rpcproto.NewErrno(syscall.EEXIST, "")
	}
	return nil
}

func statErrno(err error) *rpcproto.Errno {
	if err == nil {
		return nil
	}
	if errors.Is(err, sorted.ErrNotFound) {
		return rpcproto.NewErrno(syscall.ENOENT, "")
	}
	return rpcproto.NewErrno(syscall.EIO, err.Error())
}

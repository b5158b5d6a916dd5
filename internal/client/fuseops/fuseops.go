// Package fuseops adapts the mount-relative namespace GekkoFS
// exposes to bazil.org/fuse's fs.FS/Node/Handle model: every Node is
// just a mount-relative path, with no local caching beyond what a
// single open instance snapshots. Attr, Lookup, Create, Mkdir,
// Remove, Setattr and Readlink/Symlink all go straight to
// internal/client/rpcclient.Facade. There is no client-side metadata
// cache, so concurrent changes from other nodes are visible on the
// next call, not reflected retroactively into anything already
// resolved.
//
// The kernel's VFS walk is what separates internal from external
// paths: a path under the mountpoint is internal by construction, one
// outside it never reaches this package at all, so there is no
// per-syscall classification step here. internal/client.Resolver
// covers the one call site that still faces a raw path string:
// validating an absolute symlink target.
package fuseops

import (
	"context"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"github.com/gekkofs/gekkofs/internal/client"
	"github.com/gekkofs/gekkofs/internal/client/rpcclient"
	"github.com/gekkofs/gekkofs/internal/gkfslog"
	"github.com/gekkofs/gekkofs/pkg/gkfspath"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/rpcproto"
)

// FS is the bazil.org/fuse filesystem GekkoFS mounts: a thin shell
// around the RPC facade and the mount context every node shares.
type FS struct {
	Ctx   *client.MountContext
	RPC   *rpcclient.Facade
	Fds   *client.FdTable
	Paths *client.Resolver
	Log   *gkfslog.Logger
}

var _ fusefs.FS = (*FS)(nil)
var _ fusefs.FSStatfser = (*FS)(nil)

// Root returns the node for the mount's root directory.
func (f *FS) Root() (fusefs.Node, error) {
	return &node{fs: f, path: "/"}, nil
}

// Statfs aggregates chunk_stat across every daemon, reporting block
// counts in units of whole chunks.
func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	stat, errno := f.RPC.StatFS()
	if errno != nil {
		return toFuseErr(errno)
	}
	resp.Blocks = stat.ChunkTotal
	resp.Bfree = stat.ChunkFree
	resp.Bavail = stat.ChunkFree
	resp.Bsize = uint32(stat.ChunkSize)
	resp.Frsize = uint32(stat.ChunkSize)
	resp.Namelen = 4096
	return nil
}

// node is every GekkoFS path: a file, a directory, or a symlink. Its
// kind is determined on demand via Stat rather than cached; node
// types differ only in the mode bits of their Metadata record.
type node struct {
	fs   *FS
	path string // mount-relative, absolute
}

var (
	_ fusefs.Node               = (*node)(nil)
	_ fusefs.NodeStringLookuper = (*node)(nil)
	_ fusefs.NodeCreater        = (*node)(nil)
	_ fusefs.NodeMkdirer        = (*node)(nil)
	_ fusefs.NodeRemover        = (*node)(nil)
	_ fusefs.NodeRenamer        = (*node)(nil)
	_ fusefs.NodeOpener         = (*node)(nil)
	_ fusefs.NodeSetattrer      = (*node)(nil)
	_ fusefs.NodeFsyncer        = (*node)(nil)
	_ fusefs.NodeReadlinker     = (*node)(nil)
	_ fusefs.NodeSymlinker      = (*node)(nil)
	_ fusefs.NodeAccesser       = (*node)(nil)
)

// Access implements fs.NodeAccesser. Existence is the only thing
// checked: the namespace has no permission enforcement beyond what
// Attr already reports, so an access request against a path that
// stats successfully is always granted.
func (n *node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	if _, errno := n.fs.RPC.Stat(n.path); errno != nil {
		return toFuseErr(errno)
	}
	return nil
}

func child(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// toFuseErr converts the RPC facade's POSIX errno into the form
// bazil.org/fuse recognizes so the kernel sees the exact errno rather
// than a blanket EIO.
func toFuseErr(e *rpcproto.Errno) error {
	if e == nil {
		return nil
	}
	return fuse.Errno(e.Code)
}

func fillAttr(a *fuse.Attr, md metadata.Metadata, ctx *client.MountContext) {
	a.Mode = md.Mode
	a.Size = uint64(md.Size)
	a.Uid = ctx.UID
	a.Gid = ctx.GID
	a.Nlink = md.LinkCount
	if a.Nlink == 0 {
		a.Nlink = 1
	}
	if md.Atime != 0 {
		a.Atime = time.Unix(md.Atime, 0)
	}
	if md.Mtime != 0 {
		a.Mtime = time.Unix(md.Mtime, 0)
	}
	if md.Ctime != 0 {
		a.Ctime = time.Unix(md.Ctime, 0)
	}
	if md.Blocks != 0 {
		a.Blocks = uint64(md.Blocks)
	} else if md.Size > 0 {
		a.Blocks = uint64(md.Size)/512 + 1
	}
}

// Attr implements fs.Node via the stat RPC.
func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	md, errno := n.fs.RPC.Stat(n.path)
	if errno != nil {
		return toFuseErr(errno)
	}
	fillAttr(a, md, n.fs.Ctx)
	return nil
}

// Lookup implements fs.NodeStringLookuper: existence is checked with
// a stat RPC against the child path, a one-hop walk, since the
// parent directory component is already resolved, being this Node.
func (n *node) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	cpath := child(n.path, name)
	if _, errno := n.fs.RPC.Stat(cpath); errno != nil {
		return nil, toFuseErr(errno)
	}
	return &node{fs: n.fs, path: cpath}, nil
}

// Create implements fs.NodeCreater: create + open in one step,
// returning a fileHandle registered in the client FdTable.
func (n *node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	cpath := child(n.path, req.Name)
	mode := req.Mode &^ os.ModeType
	if errno := n.fs.RPC.Create(cpath, uint32(mode)); errno != nil {
		return nil, nil, toFuseErr(errno)
	}
	resp.Flags |= fuse.OpenDirectIO
	newNode := &node{fs: n.fs, path: cpath}
	of := client.NewOpenFile(cpath, int(req.Flags))
	id := n.fs.Fds.OpenFile(of)
	return newNode, &fileHandle{fs: n.fs, of: of, id: id}, nil
}

// Mkdir implements fs.NodeMkdirer.
func (n *node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	cpath := child(n.path, req.Name)
	mode := os.ModeDir | (req.Mode &^ os.ModeType)
	if errno := n.fs.RPC.Create(cpath, uint32(mode)); errno != nil {
		return nil, toFuseErr(errno)
	}
	return &node{fs: n.fs, path: cpath}, nil
}

// Remove implements fs.NodeRemover, dispatching to the remove RPC
// for a file; a directory must list empty first, so rmdir on a
// nonempty directory fails with ENOTEMPTY.
func (n *node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	cpath := child(n.path, req.Name)
	md, errno := n.fs.RPC.Stat(cpath)
	if errno != nil {
		return toFuseErr(errno)
	}
	if req.Dir && !md.IsDir() {
		return fuse.Errno(syscall.ENOTDIR)
	}
	if !req.Dir && md.IsDir() {
		return fuse.Errno(syscall.EISDIR)
	}
	if md.IsDir() {
		ents, errno := n.fs.RPC.Dirents(cpath)
		if errno != nil {
			return toFuseErr(errno)
		}
		if len(ents) > 0 {
			return fuse.Errno(syscall.ENOTEMPTY)
		}
	}
	if errno := n.fs.RPC.Remove(cpath, md); errno != nil {
		return toFuseErr(errno)
	}
	return nil
}

// Rename implements fs.NodeRenamer. The RPC surface has no rename
// operation at all, not even within the namespace, so every rename
// is refused with ENOTSUP.
func (n *node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	return fuse.Errno(syscall.ENOTSUP)
}

// Readlink implements fs.NodeReadlinker.
func (n *node) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	md, errno := n.fs.RPC.Stat(n.path)
	if errno != nil {
		return "", toFuseErr(errno)
	}
	if !md.IsLink() {
		return "", fuse.Errno(syscall.EINVAL)
	}
	return md.TargetPath, nil
}

// Symlink implements fs.NodeSymlinker. Targets are stored
// mount-relative: an absolute target is run through the resolver and
// refused with ENOTSUP when it points outside the mount (links may
// not cross the mount boundary), a relative target is anchored at
// this directory.
func (n *node) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	target := req.Target
	if gkfspath.IsAbsolute(target) {
		rel, internal := n.fs.Paths.Resolve(target)
		if !internal {
			return nil, fuse.Errno(syscall.ENOTSUP)
		}
		target = rel
	} else {
		target = gkfspath.Clean(child(n.path, target))
	}
	cpath := child(n.path, req.NewName)
	if errno := n.fs.RPC.Symlink(cpath, target); errno != nil {
		return nil, toFuseErr(errno)
	}
	return &node{fs: n.fs, path: cpath}, nil
}

// Fsync implements fs.NodeFsyncer. Every write already lands on the
// daemon synchronously (there is no write-back cache), so there is
// nothing additional to flush.
func (n *node) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return nil
}

// Setattr implements fs.NodeSetattrer. A size change runs the
// truncate path; mode and timestamp changes are pushed to the
// metadata-owning host via update_metadentry. uid/gid changes are
// accepted and discarded; ownership is fixed cluster-wide at daemon
// startup and there is no chown RPC.
func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		md, errno := n.fs.RPC.Stat(n.path)
		if errno != nil {
			return toFuseErr(errno)
		}
		newSize := int64(req.Size)
		if newSize < md.Size {
			if errno := n.fs.RPC.Truncate(n.path, md.Size, newSize); errno != nil {
				return toFuseErr(errno)
			}
			if errno := n.fs.RPC.DecreaseSize(n.path, newSize); errno != nil {
				return toFuseErr(errno)
			}
		} else if newSize > md.Size {
			if _, errno := n.fs.RPC.UpdateSize(n.path, newSize, false); errno != nil {
				return toFuseErr(errno)
			}
		}
	}

	var flags rpcproto.UpdateFlags
	var md metadata.Metadata
	if req.Valid.Mode() {
		flags.Mode = true
		md.Mode = req.Mode
	}
	if req.Valid.Atime() {
		flags.Atime = true
		md.Atime = req.Atime.Unix()
	}
	if req.Valid.Mtime() {
		flags.Mtime = true
		md.Mtime = req.Mtime.Unix()
	}
	if flags != (rpcproto.UpdateFlags{}) {
		if errno := n.fs.RPC.Update(n.path, md, flags); errno != nil {
			return toFuseErr(errno)
		}
	}
	return n.Attr(ctx, &resp.Attr)
}

// Open implements fs.NodeOpener: a directory open eagerly snapshots
// its entries, a regular file open returns a position-tracking
// fileHandle registered in the FdTable.
func (n *node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	if req.Dir {
		raw, errno := n.fs.RPC.Dirents(n.path)
		if errno != nil {
			return nil, toFuseErr(errno)
		}
		entries := make([]client.DirEntry, len(raw))
		for i, e := range raw {
			entries[i] = client.DirEntry{Name: e.Name, IsDir: e.IsDir}
		}
		od := client.NewOpenDir(n.path, entries)
		id := n.fs.Fds.OpenDir(od)
		return &dirHandle{od: od, fs: n.fs, id: id}, nil
	}
	resp.Flags |= fuse.OpenDirectIO
	of := client.NewOpenFile(n.path, int(req.Flags))
	id := n.fs.Fds.OpenFile(of)
	return &fileHandle{fs: n.fs, of: of, id: id}, nil
}

// fileHandle is the Handle bazil.org/fuse hands back for a file Open;
// it wraps the client.OpenFile the FdTable tracks so Release can
// unregister it. The actual read/write offset used on the wire is
// always the kernel-supplied req.Offset (FUSE always operates in
// pread/pwrite style), so of.pos is advisory bookkeeping: Read and
// Write keep it up to date, and no operation here reads it back.
type fileHandle struct {
	fs *FS
	of *client.OpenFile
	id uint64
}

var (
	_ fusefs.Handle         = (*fileHandle)(nil)
	_ fusefs.HandleReader   = (*fileHandle)(nil)
	_ fusefs.HandleWriter   = (*fileHandle)(nil)
	_ fusefs.HandleReleaser = (*fileHandle)(nil)
	_ fusefs.HandleFlusher  = (*fileHandle)(nil)
)

// Read implements fs.HandleReader via the read RPC facade. The
// request is first capped at the file's current metadata size: daemons
// zero-fill sparse and short chunks (they hold no notion of the file's
// end), so the end-of-file short count is produced here, the one
// place that can tell EOF from a sparse hole.
func (h *fileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileSize, errno := h.fs.RPC.GetSize(h.of.Path)
	if errno != nil {
		return toFuseErr(errno)
	}
	if req.Offset >= fileSize {
		resp.Data = nil
		return nil
	}
	size := int64(req.Size)
	if rest := fileSize - req.Offset; rest < size {
		size = rest
	}
	buf := make([]byte, size)
	n, errno := h.fs.RPC.Read(h.of.Path, buf, req.Offset)
	if errno != nil {
		return toFuseErr(errno)
	}
	resp.Data = buf[:n]
	h.of.SetPos(req.Offset + n)
	return nil
}

// Write implements fs.HandleWriter via the write RPC facade. The
// daemon-visible size update (update_metadentry_size) happens before
// the data transfer. A file opened with O_APPEND ignores req.Offset
// entirely: the target offset is instead derived from the atomic
// append-mode size bump, so concurrent appenders from different nodes
// land in disjoint ranges rather than racing on a client-computed
// end-of-file.
func (h *fileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	off := req.Offset
	if h.of.Flags()&os.O_APPEND != 0 {
		newSize, errno := h.fs.RPC.UpdateSize(h.of.Path, int64(len(req.Data)), true)
		if errno != nil {
			return toFuseErr(errno)
		}
		off = newSize - int64(len(req.Data))
	} else if _, errno := h.fs.RPC.UpdateSize(h.of.Path, off+int64(len(req.Data)), false); errno != nil {
		return toFuseErr(errno)
	}
	// The size bump above already landed even if the transfer below
	// fails; a following stat may then over-report size with a sparse
	// gap. The metadentry size is not rolled back on a failed write.
	n, errno := h.fs.RPC.Write(h.of.Path, req.Data, off)
	if errno != nil {
		return toFuseErr(errno)
	}
	resp.Size = int(n)
	h.of.SetPos(off + n)
	return nil
}

// Flush implements fs.HandleFlusher. No buffering happens client
// side, so there is nothing to flush.
func (h *fileHandle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return nil
}

// Release implements fs.HandleReleaser, unregistering the handle
// from the FdTable.
func (h *fileHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	h.fs.Fds.Release(h.id)
	return nil
}

// dirHandle is the Handle for a directory Open: an eager snapshot of
// the directory's entries.
type dirHandle struct {
	od *client.OpenDir
	fs *FS
	id uint64
}

var (
	_ fusefs.HandleReadDirAller = (*dirHandle)(nil)
	_ fusefs.HandleReleaser     = (*dirHandle)(nil)
)

// Release implements fs.HandleReleaser for a directory handle.
func (h *dirHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	h.fs.Fds.Release(h.id)
	return nil
}

// ReadDirAll implements fs.HandleReadDirAller from the entry
// snapshot taken at Open time; later changes from other nodes are
// not reflected into an already-open handle.
func (h *dirHandle) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries := h.od.All()
	out := make([]fuse.Dirent, 0, len(entries)+2)
	out = append(out, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	out = append(out, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	for _, e := range entries {
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Name: e.Name, Type: typ})
	}
	return out, nil
}

package daemon

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/gekkofs/gekkofs/pkg/chunk"
	"github.com/gekkofs/gekkofs/pkg/chunkstore"
	"github.com/gekkofs/gekkofs/pkg/distributor"
	"github.com/gekkofs/gekkofs/pkg/rpcproto"
)

// DataOps implements the per-request chunk read/write/truncate flow:
// a per-request operation object holding one subtask per owned chunk,
// submitted to a bounded worker pool, with per-subtask completion
// collected into a single io_size/errno result.
//
// The request header names the operation's whole chunk range plus
// this daemon's host id and the cluster size; which chunks in that
// range are actually this daemon's is re-derived here with the same
// distributor the client used, rather than trusted from an explicit
// list on the wire.
type DataOps struct {
	chunks *chunkstore.Store
	pool   *WorkerPool
	dist   distributor.Distributor
}

// NewDataOps returns a DataOps backed by chunks, bounding chunk
// subtask concurrency via pool and computing chunk ownership via dist
// (which must match the distributor every client was configured with).
func NewDataOps(chunks *chunkstore.Store, pool *WorkerPool, dist distributor.Distributor) *DataOps {
	return &DataOps{chunks: chunks, pool: pool, dist: dist}
}

// subtask is one owned chunk's slice of a request: intra-chunk offset
// (nonzero only for the range's first chunk) and byte count.
type subtask struct {
	chunkID int64
	off     int64
	size    int64
}

// ownedSubtasks walks the request's global chunk range and keeps the
// chunks this daemon owns, computing each one's intra-chunk offset and
// size. Every owned chunk takes its full capacity except the range's
// last chunk, which takes whatever remains of TotalBytes, the same
// split the client applied when it computed TotalBytes; the final
// remaining/ChunkN cross-check catches any client/daemon disagreement
// on placement or chunk size before a byte is written.
func (d *DataOps) ownedSubtasks(hdr rpcproto.DataOpHeader) ([]subtask, *rpcproto.Errno) {
	if hdr.HostCount != d.dist.NumHosts() {
		return nil, rpcproto.NewErrno(syscall.EINVAL, "host count mismatch between client and daemon")
	}
	var tasks []subtask
	remaining := hdr.TotalBytes
	for id := hdr.ChunkStart; id <= hdr.ChunkEnd && remaining > 0; id++ {
		if d.dist.LocateData(hdr.Path, id) != hdr.HostID {
			continue
		}
		off := int64(0)
		if id == hdr.ChunkStart {
			off = hdr.LeftPad
		}
		size := chunk.Size - off
		if remaining < size {
			size = remaining
		}
		remaining -= size
		tasks = append(tasks, subtask{chunkID: id, off: off, size: size})
	}
	if remaining != 0 || int64(len(tasks)) != hdr.ChunkN {
		return nil, rpcproto.NewErrno(syscall.EINVAL, "chunk accounting mismatch")
	}
	return tasks, nil
}

// Write implements the write handler flow. The body is one stream
// holding the owned chunks' bytes in ascending chunk order, so each
// chunk's slice is pulled off it sequentially into a staging buffer
// first; only then do the disk subtasks run concurrently on the
// pool. On any subtask error the reported io_size is 0 and the
// returned errno is the one the subtask's error carries, or EIO if it
// carries none.
func (d *DataOps) Write(hdr rpcproto.DataOpHeader, body io.Reader) (int64, *rpcproto.Errno) {
	tasks, errno := d.ownedSubtasks(hdr)
	if errno != nil {
		return 0, errno
	}
	bufs := make([][]byte, len(tasks))
	for i, st := range tasks {
		buf := make([]byte, st.size)
		if _, err := io.ReadFull(body, buf); err != nil {
			return 0, rpcproto.NewErrno(syscall.EIO, err.Error())
		}
		bufs[i] = buf
	}

	var mu sync.Mutex
	var written int64
	work := make([]func() error, len(tasks))
	for i, st := range tasks {
		i, st := i, st
		work[i] = func() error {
			w, err := d.chunks.WriteChunk(hdr.Path, st.chunkID, st.off, st.size, bytes.NewReader(bufs[i]))
			mu.Lock()
			written += w
			mu.Unlock()
			return err
		}
	}
	if err := d.pool.Run(work...); err != nil {
		code := syscall.EIO
		var se syscall.Errno
		if errors.As(err, &se) {
			code = se
		}
		return 0, rpcproto.NewErrno(code, err.Error())
	}
	return written, nil
}

// Read implements the read handler flow, returning exactly TotalBytes
// bytes: each owned chunk's contribution is read into its slot of the
// result buffer, and anything a chunk file doesn't cover (a missing
// file for a sparse region, or a short one) stays zero. Zero-filling
// keeps every chunk boundary in the stream where the client expects it,
// which an RDMA push at per-chunk offsets got for free but a
// sequential body cannot. Trimming the result at end-of-file is the
// client's job, against the metadata size this daemon does not hold.
func (d *DataOps) Read(hdr rpcproto.DataOpHeader) ([]byte, *rpcproto.Errno) {
	tasks, errno := d.ownedSubtasks(hdr)
	if errno != nil {
		return nil, errno
	}
	out := make([]byte, hdr.TotalBytes)
	work := make([]func() error, len(tasks))
	var pos int64
	for i, st := range tasks {
		st := st
		dst := out[pos : pos+st.size]
		pos += st.size
		work[i] = func() error {
			_, err := d.chunks.ReadChunk(hdr.Path, st.chunkID, st.off, st.size, &sliceWriter{dst: dst})
			return err
		}
	}
	if err := d.pool.Run(work...); err != nil {
		return nil, rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	return out, nil
}

// Truncate implements truncate_chunk_space for a shrink to newSize.
func (d *DataOps) Truncate(path string, newSize int64) *rpcproto.Errno {
	fromID := chunk.ID(newSize)
	leftPad := chunk.LeftPad(newSize)
	if leftPad != 0 {
		// newSize falls inside chunk fromID: that chunk survives,
		// shrunk to leftPad bytes, so the delete boundary moves past it.
		fromID++
	}
	if err := d.chunks.TruncateChunkSpace(path, fromID, leftPad); err != nil {
		return rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	return nil
}

// sliceWriter is a minimal io.Writer filling a fixed destination
// slice, used so a chunk subtask can read straight into its slot of
// the response buffer.
type sliceWriter struct {
	dst []byte
	n   int
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.dst[w.n:], p)
	w.n += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

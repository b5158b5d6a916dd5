// Package rpcclient implements the client-side RPC facade: it fans
// metadata and data requests out to the daemons a Distributor names,
// aggregates per-target results, and presents a single call per
// logical operation to internal/client/fuseops.
//
// Bulk transfer is the request/response body of a plain HTTP POST
// (JSON bodies for metadata operations, raw bytes for chunk content)
// rather than a bespoke framing. Each write/read already bounds its
// own fan-out to at most NumHosts targets, so no client-wide request
// gate is needed.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gekkofs/gekkofs/pkg/chunk"
	"github.com/gekkofs/gekkofs/pkg/distributor"
	"github.com/gekkofs/gekkofs/pkg/httputil"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/rpcproto"
)

// Facade fans metadata and data operations out to the hosts named by
// dist, over plain HTTP. It holds no per-file state; callers
// (internal/client/fuseops) own the mount-relative path and any
// position bookkeeping.
type Facade struct {
	hosts []string // endpoint per host id, index == host id
	dist  distributor.Distributor
	hc    *http.Client
	cfg   metadata.FieldConfig
}

// New returns a Facade issuing requests to hosts (indexed by host id,
// matching dist's placement) with a request timeout of timeout; 0
// disables the timeout, leaving no application-visible cancellation.
func New(hosts []string, dist distributor.Distributor, cfg metadata.FieldConfig, timeout time.Duration) *Facade {
	return &Facade{
		hosts: hosts,
		dist:  dist,
		cfg:   cfg,
		hc:    &http.Client{Timeout: timeout},
	}
}

func (f *Facade) endpoint(hostID uint32, path string) string {
	return fmt.Sprintf("%s%s", f.hosts[hostID], path)
}

// transportErrno wraps a non-HTTP transport failure (connection
// refused, timeout) as EBUSY: the daemon is unreachable, not broken.
func transportErrno(err error) *rpcproto.Errno {
	return rpcproto.NewErrno(syscall.EBUSY, err.Error())
}

func (f *Facade) doJSON(hostID uint32, reqID, method, path string, reqBody, respBody interface{}) *rpcproto.Errno {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return rpcproto.NewErrno(syscall.EINVAL, err.Error())
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.endpoint(hostID, path), body)
	if err != nil {
		return rpcproto.NewErrno(syscall.EINVAL, err.Error())
	}
	req.Header.Set(rpcproto.HeaderRequestID, reqID)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.hc.Do(req)
	if err != nil {
		return transportErrno(err)
	}
	defer httputil.CloseBody(resp.Body)

	if resp.StatusCode >= 300 {
		e, derr := rpcproto.ReadError(resp.Body)
		if derr != nil {
			return rpcproto.NewErrno(syscall.EIO, derr.Error())
		}
		return e
	}
	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return rpcproto.NewErrno(syscall.EIO, err.Error())
		}
	}
	return nil
}

// Create implements the `create` RPC.
func (f *Facade) Create(path string, mode uint32) *rpcproto.Errno {
	host := f.dist.LocateMetadata(path)
	return f.doJSON(host, uuid.NewString(), http.MethodPost, "/gkfs/v1/metadata/create", rpcproto.CreateRequest{Path: path, Mode: mode}, nil)
}

// Stat implements the `stat` RPC, returning the parsed record.
func (f *Facade) Stat(path string) (metadata.Metadata, *rpcproto.Errno) {
	host := f.dist.LocateMetadata(path)
	var resp rpcproto.StatResponse
	if errno := f.doJSON(host, uuid.NewString(), http.MethodGet, "/gkfs/v1/metadata/stat?path="+pathQuery(path), nil, &resp); errno != nil {
		return metadata.Metadata{}, errno
	}
	md, err := metadata.Parse(resp.Metadata, f.cfg)
	if err != nil {
		return metadata.Metadata{}, rpcproto.NewErrno(syscall.EIO, err.Error())
	}
	return md, nil
}

// Remove implements the `remove` RPC. If md indicates a regular file
// with data, the remove is broadcast to every host so each can
// reclaim any chunks it owns; otherwise only the metadata-owning
// host is contacted.
func (f *Facade) Remove(path string, md metadata.Metadata) *rpcproto.Errno {
	reqID := uuid.NewString()
	metaHost := f.dist.LocateMetadata(path)
	if md.IsDir() || md.Size == 0 {
		return f.doJSON(metaHost, reqID, http.MethodPost, "/gkfs/v1/metadata/remove", rpcproto.RemoveRequest{Path: path}, nil)
	}

	targets := f.allHosts()
	errs := f.broadcast(targets, func(hostID uint32) *rpcproto.Errno {
		return f.doJSON(hostID, reqID, http.MethodPost, "/gkfs/v1/metadata/remove", rpcproto.RemoveRequest{Path: path}, nil)
	})
	return firstErrno(errs)
}

// Update implements update_metadentry: md's fields selected by flags
// replace the stored record's on the metadata-owning host.
func (f *Facade) Update(path string, md metadata.Metadata, flags rpcproto.UpdateFlags) *rpcproto.Errno {
	host := f.dist.LocateMetadata(path)
	return f.doJSON(host, uuid.NewString(), http.MethodPost, "/gkfs/v1/metadata/update",
		rpcproto.UpdateRequest{Path: path, Metadata: metadata.Serialize(md, f.cfg), Flags: flags}, nil)
}

// GetSize implements get_metadentry_size, a cheaper probe than Stat
// when only the size is needed.
func (f *Facade) GetSize(path string) (int64, *rpcproto.Errno) {
	host := f.dist.LocateMetadata(path)
	var resp rpcproto.GetSizeResponse
	if errno := f.doJSON(host, uuid.NewString(), http.MethodGet, "/gkfs/v1/metadata/size?path="+pathQuery(path), nil, &resp); errno != nil {
		return 0, errno
	}
	return resp.Size, nil
}

// UpdateSize implements update_metadentry_size.
func (f *Facade) UpdateSize(path string, size int64, append bool) (int64, *rpcproto.Errno) {
	host := f.dist.LocateMetadata(path)
	var resp rpcproto.UpdateSizeResponse
	errno := f.doJSON(host, uuid.NewString(), http.MethodPost, "/gkfs/v1/metadata/update-size",
		rpcproto.UpdateSizeRequest{Path: path, Size: size, Append: append}, &resp)
	if errno != nil {
		return 0, errno
	}
	return resp.NewSize, nil
}

// DecreaseSize implements decr_size.
func (f *Facade) DecreaseSize(path string, size int64) *rpcproto.Errno {
	host := f.dist.LocateMetadata(path)
	return f.doJSON(host, uuid.NewString(), http.MethodPost, "/gkfs/v1/metadata/decr-size", rpcproto.DecreaseSizeRequest{Path: path, Size: size}, nil)
}

// Dirent is one directory entry returned by Dirents.
type Dirent struct {
	Name  string
	IsDir bool
}

// Dirents implements get_dirents.
func (f *Facade) Dirents(path string) ([]Dirent, *rpcproto.Errno) {
	host := f.dist.LocateMetadata(path)
	var resp rpcproto.DirentsResponse
	if errno := f.doJSON(host, uuid.NewString(), http.MethodGet, "/gkfs/v1/metadata/dirents?path="+pathQuery(path), nil, &resp); errno != nil {
		return nil, errno
	}
	out := make([]Dirent, len(resp.Entries))
	for i, e := range resp.Entries {
		out[i] = Dirent{Name: e.Name, IsDir: e.IsDir}
	}
	return out, nil
}

// Symlink implements mk_symlink.
func (f *Facade) Symlink(path, target string) *rpcproto.Errno {
	host := f.dist.LocateMetadata(path)
	return f.doJSON(host, uuid.NewString(), http.MethodPost, "/gkfs/v1/metadata/symlink", rpcproto.SymlinkRequest{Path: path, Target: target}, nil)
}

// FSConfig implements fs_config, the bootstrap call cmd/gkfs-mount
// issues against host 0 on startup to learn the field layout this
// cluster was started with.
func (f *Facade) FSConfig() (rpcproto.FSConfigResponse, *rpcproto.Errno) {
	var resp rpcproto.FSConfigResponse
	errno := f.doJSON(0, uuid.NewString(), http.MethodGet, "/gkfs/v1/config", nil, &resp)
	return resp, errno
}

func pathQuery(path string) string {
	return url.QueryEscape(path)
}

// achievedSize reads the daemon-reported transfer size from the
// X-Gkfs-Io-Size response header, falling back to the number of
// bytes actually decoded if the header is absent or malformed.
func achievedSize(resp *http.Response, decoded int64) int64 {
	raw := resp.Header.Get(rpcproto.HeaderIOSize)
	if raw == "" {
		return decoded
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return decoded
	}
	return n
}

func (f *Facade) allHosts() []uint32 {
	n := f.dist.NumHosts()
	hosts := make([]uint32, n)
	for i := range hosts {
		hosts[i] = uint32(i)
	}
	return hosts
}

// broadcast runs fn concurrently against every id in targets and
// collects the results in target order. Remove uses it for its
// all-hosts fan-out; Write, Read, Truncate and StatFS run their own
// goroutine loops.
func (f *Facade) broadcast(targets []uint32, fn func(hostID uint32) *rpcproto.Errno) []*rpcproto.Errno {
	errs := make([]*rpcproto.Errno, len(targets))
	var wg sync.WaitGroup
	for i, id := range targets {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn(id)
		}()
	}
	wg.Wait()
	return errs
}

// firstErrno returns the last non-nil errno in errs, or nil if there
// is none.
func firstErrno(errs []*rpcproto.Errno) *rpcproto.Errno {
	var last *rpcproto.Errno
	for _, e := range errs {
		if e != nil {
			last = e
		}
	}
	return last
}

// chunkTarget is one host's share of a write/read/truncate request:
// the chunk ids it owns within the operation's range, ascending. Hash
// placement interleaves ownership, so the ids are in general NOT
// contiguous; each target gets the global range on the wire and the
// daemon re-derives this same list with its own distributor.
type chunkTarget struct {
	hostID   uint32
	chunkIDs []int64
}

// planTargets partitions r's chunk range by owning host, in ascending
// chunk-id order per target. Target order is first-touched order,
// which both sides treat as insignificant.
func planTargets(path string, r chunk.Range, dist distributor.Distributor) []chunkTarget {
	byHost := make(map[uint32]int)
	var out []chunkTarget
	for id := r.Start; id <= r.End; id++ {
		host := dist.LocateData(path, id)
		i, ok := byHost[host]
		if !ok {
			i = len(out)
			byHost[host] = i
			out = append(out, chunkTarget{hostID: host})
		}
		out[i].chunkIDs = append(out[i].chunkIDs, id)
	}
	return out
}

// bufOffset returns the offset within the aggregate transfer buffer
// at which chunk id's slice begins.
func bufOffset(r chunk.Range, id int64) int64 {
	if id == r.Start {
		return 0
	}
	return (id-r.Start)*chunk.Size - r.LeftPad
}

// targetHeader builds the wire header for target t of an operation
// spanning r, and returns the per-id slices of buf this target
// transfers, in ascending chunk order: for a write they become the
// request body (concatenated), for a read the destinations the
// response body is copied back into.
func targetHeader(path string, r chunk.Range, t chunkTarget, dist distributor.Distributor, buf []byte) (rpcproto.DataOpHeader, [][]byte) {
	slices := make([][]byte, len(t.chunkIDs))
	var total int64
	for i, id := range t.chunkIDs {
		off := bufOffset(r, id)
		n := r.ChunkSize(id)
		slices[i] = buf[off : off+n]
		total += n
	}
	return rpcproto.DataOpHeader{
		Path:       path,
		LeftPad:    r.LeftPad,
		HostID:     t.hostID,
		HostCount:  dist.NumHosts(),
		ChunkN:     int64(len(t.chunkIDs)),
		ChunkStart: r.Start,
		ChunkEnd:   r.End,
		TotalBytes: total,
	}, slices
}

// Write implements the write RPC facade. effectiveOffset is the byte
// offset the transfer starts at; the caller has already resolved
// append mode to a concrete offset via the atomic size bump (see
// fuseops.fileHandle.Write).
func (f *Facade) Write(path string, buf []byte, effectiveOffset int64) (int64, *rpcproto.Errno) {
	size := int64(len(buf))
	if size == 0 {
		return 0, nil
	}
	reqID := uuid.NewString()
	r := chunk.ComputeRange(effectiveOffset, size)
	targets := planTargets(path, r, f.dist)

	var mu sync.Mutex
	var total int64
	var lastErr *rpcproto.Errno
	var wg sync.WaitGroup
	for _, t := range targets {
		t := t
		hdr, slices := targetHeader(path, r, t, f.dist, buf)
		wg.Add(1)
		go func() {
			defer wg.Done()
			readers := make([]io.Reader, len(slices))
			for i, s := range slices {
				readers[i] = bytes.NewReader(s)
			}
			n, errno := f.dataOp(t.hostID, reqID, "/gkfs/v1/data/write", hdr, io.MultiReader(readers...), nil)
			mu.Lock()
			defer mu.Unlock()
			total += n
			if errno != nil {
				lastErr = errno
			}
		}()
	}
	wg.Wait()

	// If any target returns an error, the returned byte count is 0;
	// the API does not track which bytes landed.
	if lastErr != nil {
		return 0, lastErr
	}
	return total, nil
}

// Read implements the read RPC facade: symmetric to Write, with each
// target's response bytes copied back into buf at
// the owning chunks' offsets. Daemons zero-fill sparse or short
// chunks, so on success buf is fully populated and the returned count
// is len(buf); callers cap the request at the file's metadata size
// beforehand to observe end-of-file short reads (see fuseops).
func (f *Facade) Read(path string, buf []byte, off int64) (int64, *rpcproto.Errno) {
	size := int64(len(buf))
	if size == 0 {
		return 0, nil
	}
	reqID := uuid.NewString()
	r := chunk.ComputeRange(off, size)
	targets := planTargets(path, r, f.dist)

	var mu sync.Mutex
	var total int64
	var lastErr *rpcproto.Errno
	var wg sync.WaitGroup
	for _, t := range targets {
		t := t
		hdr, slices := targetHeader(path, r, t, f.dist, buf)
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, errno := f.dataOp(t.hostID, reqID, "/gkfs/v1/data/read", hdr, nil, slices)
			mu.Lock()
			defer mu.Unlock()
			total += n
			if errno != nil {
				lastErr = errno
			}
		}()
	}
	wg.Wait()

	if lastErr != nil {
		return 0, lastErr
	}
	return total, nil
}

// dataOp posts hdr plus reqBody (if non-nil) to path on hostID and,
// if respInto is non-nil, copies the response body into its slices in
// order (their total length being the target's planned share, which
// the daemon's zero-filled response always matches on success). It
// returns the achieved transfer size reported via
// rpcproto.HeaderIOSize.
func (f *Facade) dataOp(hostID uint32, reqID, path string, hdr rpcproto.DataOpHeader, reqBody io.Reader, respInto [][]byte) (int64, *rpcproto.Errno) {
	req, err := http.NewRequest(http.MethodPost, f.endpoint(hostID, path), reqBody)
	if err != nil {
		return 0, rpcproto.NewErrno(syscall.EINVAL, err.Error())
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return 0, rpcproto.NewErrno(syscall.EINVAL, err.Error())
	}
	req.Header.Set(rpcproto.HeaderDataOp, string(hdrJSON))
	req.Header.Set(rpcproto.HeaderRequestID, reqID)

	resp, err := f.hc.Do(req)
	if err != nil {
		return 0, transportErrno(err)
	}
	defer httputil.CloseBody(resp.Body)

	if resp.StatusCode >= 300 {
		e, derr := rpcproto.ReadError(resp.Body)
		if derr != nil {
			return 0, rpcproto.NewErrno(syscall.EIO, derr.Error())
		}
		return 0, e
	}

	var n int64
	if respInto != nil {
		for _, dst := range respInto {
			got, err := io.ReadFull(resp.Body, dst)
			n += int64(got)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			if err != nil {
				return n, rpcproto.NewErrno(syscall.EIO, err.Error())
			}
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return achievedSize(resp, n), nil
}

// Truncate implements the truncate RPC, broadcast only to hosts
// owning a chunk in the removed range.
func (f *Facade) Truncate(path string, oldSize, newSize int64) *rpcproto.Errno {
	if newSize >= oldSize {
		return nil
	}
	reqID := uuid.NewString()
	r := chunk.ComputeRange(newSize, oldSize-newSize)
	targets := planTargets(path, r, f.dist)

	errs := make([]*rpcproto.Errno, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.doJSON(t.hostID, reqID, http.MethodPost, "/gkfs/v1/data/truncate", rpcproto.TruncateRequest{Path: path, NewSize: newSize}, nil)
		}()
	}
	wg.Wait()
	return firstErrno(errs)
}

// StatFSResult aggregates chunk capacity across every host.
type StatFSResult struct {
	ChunkSize  int64
	ChunkTotal uint64
	ChunkFree  uint64
}

// StatFS implements chunk_stat, broadcast to every host and summed.
func (f *Facade) StatFS() (StatFSResult, *rpcproto.Errno) {
	reqID := uuid.NewString()
	targets := f.allHosts()
	results := make([]rpcproto.ChunkStatResponse, len(targets))
	errs := make([]*rpcproto.Errno, len(targets))
	var wg sync.WaitGroup
	for i, id := range targets {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.doJSON(id, reqID, http.MethodGet, "/gkfs/v1/data/chunk-stat", nil, &results[i])
		}()
	}
	wg.Wait()
	if errno := firstErrno(errs); errno != nil {
		return StatFSResult{}, errno
	}

	var out StatFSResult
	for _, r := range results {
		out.ChunkSize = r.ChunkSize
		out.ChunkTotal += r.ChunkTotal
		out.ChunkFree += r.ChunkFree
	}
	return out, nil
}

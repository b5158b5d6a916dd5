package daemon

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"syscall"

	"github.com/gekkofs/gekkofs/internal/gkfslog"
	"github.com/gekkofs/gekkofs/pkg/httputil"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/rpcproto"
)

// Handlers wires MetadataOps and DataOps into http.HandlerFuncs under
// /gkfs/v1: metadata operations decode and encode JSON bodies, data
// operations stream their payload as the raw request/response body
// with parameters carried in the X-Gkfs-Data-Op header (see
// pkg/rpcproto.DataOpHeader).
type Handlers struct {
	meta *MetadataOps
	data *DataOps
	cfg  Config
	log  *gkfslog.Logger
}

// NewHandlers returns Handlers serving meta and data under cfg,
// logging via log.
func NewHandlers(meta *MetadataOps, data *DataOps, cfg Config, log *gkfslog.Logger) *Handlers {
	return &Handlers{meta: meta, data: data, cfg: cfg, log: log}
}

func writeErrno(w http.ResponseWriter, errno *rpcproto.Errno) {
	rpcproto.WriteError(w, rpcproto.StatusForErrno(errno.Code), errno.Code, errno.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		rpcproto.WriteError(w, http.StatusBadRequest, syscall.EINVAL, err.Error())
		return false
	}
	return true
}

// requestID returns the client-generated X-Gkfs-Request-Id header, or
// "-" when absent, so every log.Syscall line below can be grepped for
// the single client-visible operation it belongs to.
func requestID(r *http.Request) string {
	if id := r.Header.Get(rpcproto.HeaderRequestID); id != "" {
		return id
	}
	return "-"
}

// Create handles POST /gkfs/v1/metadata/create.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.log.Syscall("req=%s create path=%s mode=%o", requestID(r), req.Path, req.Mode)
	if errno := h.meta.Create(req.Path, os.FileMode(req.Mode)); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Stat handles GET /gkfs/v1/metadata/stat.
func (h *Handlers) Stat(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	md, errno := h.meta.Stat(path)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	httputil.ReturnJSON(w, rpcproto.StatResponse{Metadata: md})
}

// Remove handles POST /gkfs/v1/metadata/remove.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.RemoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.log.Syscall("req=%s remove path=%s", requestID(r), req.Path)
	if errno := h.meta.Remove(req.Path); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Update handles POST /gkfs/v1/metadata/update.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	md, err := metadata.Parse(req.Metadata, h.meta.store.Config())
	if err != nil {
		rpcproto.WriteError(w, http.StatusBadRequest, syscall.EINVAL, err.Error())
		return
	}
	h.log.Syscall("req=%s update path=%s", requestID(r), req.Path)
	if errno := h.meta.Update(req.Path, md, req.Flags); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSize handles GET /gkfs/v1/metadata/size.
func (h *Handlers) GetSize(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	size, errno := h.meta.GetSize(path)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	httputil.ReturnJSON(w, rpcproto.GetSizeResponse{Size: size})
}

// UpdateSize handles POST /gkfs/v1/metadata/update-size.
func (h *Handlers) UpdateSize(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.UpdateSizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	newSize, errno := h.meta.IncreaseSize(req.Path, req.Size, req.Append)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	httputil.ReturnJSON(w, rpcproto.UpdateSizeResponse{NewSize: newSize})
}

// DecreaseSize handles POST /gkfs/v1/metadata/decr-size.
func (h *Handlers) DecreaseSize(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.DecreaseSizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errno := h.meta.DecreaseSize(req.Path, req.Size); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dirents handles GET /gkfs/v1/metadata/dirents.
func (h *Handlers) Dirents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	ents, errno := h.meta.Dirents(path)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	resp := rpcproto.DirentsResponse{Entries: make([]rpcproto.DirentWire, len(ents))}
	for i, e := range ents {
		resp.Entries[i] = rpcproto.DirentWire{Name: e.Name, IsDir: e.IsDir}
	}
	httputil.ReturnJSON(w, resp)
}

// Symlink handles POST /gkfs/v1/metadata/symlink.
func (h *Handlers) Symlink(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.SymlinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errno := h.meta.Symlink(req.Path, req.Target); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// dataOpHeader parses the X-Gkfs-Data-Op request header.
func dataOpHeader(r *http.Request) (rpcproto.DataOpHeader, *rpcproto.Errno) {
	var hdr rpcproto.DataOpHeader
	raw := r.Header.Get(rpcproto.HeaderDataOp)
	if raw == "" {
		return hdr, rpcproto.NewErrno(syscall.EINVAL, "missing "+rpcproto.HeaderDataOp)
	}
	if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
		return hdr, rpcproto.NewErrno(syscall.EINVAL, err.Error())
	}
	return hdr, nil
}

// Write handles POST /gkfs/v1/data/write: the request body is the
// raw bytes this daemon is responsible for; the response carries the
// achieved transfer size in X-Gkfs-Io-Size.
func (h *Handlers) Write(w http.ResponseWriter, r *http.Request) {
	hdr, errno := dataOpHeader(r)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	n, errno := h.data.Write(hdr, r.Body)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	h.log.Syscall("req=%s write path=%s chunks=%d..%d n=%d", requestID(r), hdr.Path, hdr.ChunkStart, hdr.ChunkEnd, n)
	w.Header().Set(rpcproto.HeaderIOSize, strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusOK)
}

// Read handles POST /gkfs/v1/data/read: the response body is the raw
// bytes read, with the achieved size also echoed in X-Gkfs-Io-Size.
func (h *Handlers) Read(w http.ResponseWriter, r *http.Request) {
	hdr, errno := dataOpHeader(r)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	buf, errno := h.data.Read(hdr)
	if errno != nil {
		writeErrno(w, errno)
		return
	}
	h.log.Syscall("req=%s read path=%s chunks=%d..%d n=%d", requestID(r), hdr.Path, hdr.ChunkStart, hdr.ChunkEnd, len(buf))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set(rpcproto.HeaderIOSize, strconv.Itoa(len(buf)))
	w.Write(buf)
}

// Truncate handles POST /gkfs/v1/data/truncate.
func (h *Handlers) Truncate(w http.ResponseWriter, r *http.Request) {
	var req rpcproto.TruncateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errno := h.data.Truncate(req.Path, req.NewSize); errno != nil {
		writeErrno(w, errno)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChunkStat handles GET /gkfs/v1/data/chunk-stat.
func (h *Handlers) ChunkStat(w http.ResponseWriter, r *http.Request) {
	stat, err := h.data.chunks.ChunkStat()
	if err != nil {
		rpcproto.WriteError(w, http.StatusInternalServerError, syscall.EIO, err.Error())
		return
	}
	httputil.ReturnJSON(w, rpcproto.ChunkStatResponse{
		ChunkSize:  stat.ChunkSize,
		ChunkTotal: stat.ChunkTotal,
		ChunkFree:  stat.ChunkFree,
	})
}

// FSConfig handles GET /gkfs/v1/config, the bootstrap call a client
// makes on mount to learn the field layout and identity this daemon
// was started with.
func (h *Handlers) FSConfig(w http.ResponseWriter, r *http.Request) {
	fields := h.meta.store.Config()
	httputil.ReturnJSON(w, rpcproto.FSConfigResponse{
		MountDir:    h.cfg.MountDir,
		RootDir:     h.cfg.RootDir,
		UseAtime:    fields.UseAtime,
		UseMtime:    fields.UseMtime,
		UseCtime:    fields.UseCtime,
		UseLinkCnt:  fields.UseLinkCnt,
		UseBlocks:   fields.UseBlocks,
		HasSymlinks: fields.HasSymlinks,
		UID:         h.cfg.UID,
		GID:         h.cfg.GID,
		NumHosts:    h.cfg.NumHosts,
	})
}

// Package rpcproto defines the wire request/response structs shared
// by the client RPC facade and the daemon's HTTP handlers, plus the
// errno wrapping used to carry POSIX error codes across the wire.
// Metadata operations are encoded as JSON bodies; data operations
// stream their payload as the raw HTTP request/response body
// alongside parameters carried in query/header fields.
package rpcproto

import (
	"fmt"
	"syscall"
)

// Errno wraps a POSIX errno value as a Go error, the wire-level `err`
// field of every RPC.
type Errno struct {
	Code    syscall.Errno
	Message string
}

func (e *Errno) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.Error()
}

// NewErrno wraps code with an optional descriptive message.
func NewErrno(code syscall.Errno, msg string) *Errno {
	return &Errno{Code: code, Message: msg}
}

// wireError is the JSON shape an Errno serializes to/from on the
// wire.
type wireError struct {
	Errno   int    `json:"errno"`
	Message string `json:"message,omitempty"`
}

// CreateRequest is the body of POST /gkfs/v1/metadata/create.
type CreateRequest struct {
	Path string `json:"path"`
	Mode uint32 `json:"mode"`
}

// StatResponse is the body returned by GET /gkfs/v1/metadata/stat.
type StatResponse struct {
	Metadata string `json:"metadata"` // serialized per pkg/metadata wire format
}

// RemoveRequest is the body of POST /gkfs/v1/metadata/remove.
type RemoveRequest struct {
	Path string `json:"path"`
}

// UpdateFlags selects which fields of an UpdateRequest's record are
// applied to the stored entry; unselected fields keep their stored
// values.
type UpdateFlags struct {
	Mode  bool `json:"mode"`
	Atime bool `json:"atime"`
	Mtime bool `json:"mtime"`
	Ctime bool `json:"ctime"`
}

// UpdateRequest is the body of POST /gkfs/v1/metadata/update: a full
// serialized record plus the flags naming which of its fields to
// apply.
type UpdateRequest struct {
	Path     string      `json:"path"`
	Metadata string      `json:"metadata"` // serialized per pkg/metadata wire format
	Flags    UpdateFlags `json:"flags"`
}

// GetSizeResponse is the body returned by GET /gkfs/v1/metadata/size.
type GetSizeResponse struct {
	Size int64 `json:"size"`
}

// UpdateSizeRequest is the body of POST /gkfs/v1/metadata/update-size.
type UpdateSizeRequest struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Append bool   `json:"append"`
}

// UpdateSizeResponse is the body returned by
// POST /gkfs/v1/metadata/update-size.
type UpdateSizeResponse struct {
	NewSize int64 `json:"new_size"`
}

// DecreaseSizeRequest is the body of POST /gkfs/v1/metadata/decr-size.
type DecreaseSizeRequest struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DirentsResponse is the body returned by GET /gkfs/v1/metadata/dirents.
type DirentsResponse struct {
	Entries []DirentWire `json:"entries"`
}

// DirentWire is one entry of DirentsResponse.
type DirentWire struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// SymlinkRequest is the body of POST /gkfs/v1/metadata/symlink.
type SymlinkRequest struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

// ChunkStatResponse is the body returned by GET /gkfs/v1/data/chunk-stat.
type ChunkStatResponse struct {
	ChunkSize  int64  `json:"chunk_size"`
	ChunkTotal uint64 `json:"chunk_total"`
	ChunkFree  uint64 `json:"chunk_free"`
}

// FSConfigResponse is the body returned by GET /gkfs/v1/config.
type FSConfigResponse struct {
	MountDir    string `json:"mount_dir"`
	RootDir     string `json:"root_dir"`
	UseAtime    bool   `json:"use_atime"`
	UseMtime    bool   `json:"use_mtime"`
	UseCtime    bool   `json:"use_ctime"`
	UseLinkCnt  bool   `json:"use_link_cnt"`
	UseBlocks   bool   `json:"use_blocks"`
	HasSymlinks bool   `json:"has_symlinks"`
	UID         uint32 `json:"uid"`
	GID         uint32 `json:"gid"`
	NumHosts    uint32 `json:"num_hosts"`
}

// TruncateRequest is the body of POST /gkfs/v1/data/truncate.
type TruncateRequest struct {
	Path    string `json:"path"`
	NewSize int64  `json:"new_size"`
}

// DataOpHeader carries the write/read wire parameters, sent as an
// HTTP header alongside the streamed body. ChunkStart/ChunkEnd and
// LeftPad describe the WHOLE operation's chunk range, not just this
// host's share: the daemon re-runs the shared distributor over
// [ChunkStart, ChunkEnd] to find the chunks it owns, exactly as the
// client did when slicing the transfer. The body holds only the
// owned chunks' bytes, concatenated in ascending chunk order. ChunkN
// and TotalBytes let the daemon cross-check its own placement
// computation against the client's before touching disk.
type DataOpHeader struct {
	Path       string `json:"path"`
	LeftPad    int64  `json:"left_pad"`
	HostID     uint32 `json:"host_id"`
	HostCount  uint32 `json:"host_count"`
	ChunkN     int64  `json:"chunk_n"`
	ChunkStart int64  `json:"chunk_start"`
	ChunkEnd   int64  `json:"chunk_end"`
	TotalBytes int64  `json:"total_bytes"`
}

const (
	HeaderDataOp = "X-Gkfs-Data-Op" // JSON-encoded DataOpHeader

	// HeaderIOSize carries the number of bytes this daemon
	// successfully transferred, in the response to a write/read.
	HeaderIOSize = "X-Gkfs-Io-Size"

	// HeaderRequestID carries a client-generated request id on every
	// RPC, echoed into daemon log lines so a single client-visible
	// operation (which may fan out to several hosts) can be traced
	// across every daemon it touched.
	HeaderRequestID = "X-Gkfs-Request-Id"
)

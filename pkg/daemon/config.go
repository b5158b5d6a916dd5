// Package daemon implements the storage-node process: metadata and
// data RPC handlers, the chunk I/O worker pool, and the HTTP server
// that exposes them under /gkfs/v1.
package daemon

import "github.com/gekkofs/gekkofs/pkg/metadata"

// Config holds a daemon's CLI-derived configuration.
type Config struct {
	MountDir    string
	RootDir     string
	MetaDir     string // defaults to RootDir if empty
	ListenAddr  string
	HostsFile   string
	RPCProtocol string // "tcp", "verbs", "psm2"; only "tcp" is implemented
	AutoSM      bool
	NumWorkers  int // default DefaultNumWorkers

	UID, GID uint32
	NumHosts uint32

	Fields metadata.FieldConfig
}

// DefaultNumWorkers sizes the chunk subtask pool when Config leaves
// NumWorkers unset.
const DefaultNumWorkers = 8

// MetaDirOrDefault returns c.MetaDir, falling back to c.RootDir.
func (c Config) MetaDirOrDefault() string {
	if c.MetaDir != "" {
		return c.MetaDir
	}
	return c.RootDir
}

// Package client implements the mount-side state a running
// gkfs-mount process keeps: the mount context, the open file/dir
// table, and the path resolver that decides whether a path belongs to
// the mounted namespace. The FUSE adapter (internal/client/fuseops)
// and the RPC facade (internal/client/rpcclient) are built on top of
// this package.
package client

// MountContext holds the configuration a mount was started with,
// built once by cmd/gkfs-mount and threaded through every FUSE
// callback. Once populated it is never mutated.
type MountContext struct {
	MountDir string
	Hosts    []string // endpoint per host id, index == host id
	LocalID  uint32   // this client's host id; recorded only, no operation reads it

	UseAtime    bool
	UseMtime    bool
	UseCtime    bool
	UseLinkCnt  bool
	UseBlocks   bool
	HasSymlinks bool

	UID uint32
	GID uint32
}

// NumHosts returns the number of storage daemons this mount talks to.
func (c *MountContext) NumHosts() int { return len(c.Hosts) }

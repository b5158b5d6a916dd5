package client

import (
	"strings"

	"github.com/gekkofs/gekkofs/pkg/gkfspath"
)

// rejectedPrefixes are kernel-special path prefixes that must never
// be treated as mount-internal even if they happen to share a textual
// prefix with the mountpoint.
var rejectedPrefixes = []string{"/sys/", "/proc/"}

// Resolver classifies paths as belonging to the mounted namespace or
// not, and produces the mount-relative form of internal paths. Under
// FUSE this matters only for operations that take a raw path string
// rather than arriving already scoped to the mount; in this module
// that is fuseops' check of an absolute symlink target.
type Resolver struct {
	mountDir string
}

// NewResolver returns a Resolver for the given mount directory.
// mountDir must be absolute and without a trailing slash.
func NewResolver(mountDir string) *Resolver {
	return &Resolver{mountDir: strings.TrimRight(mountDir, "/")}
}

// Classify reports whether path (absolute, already `.`/`..`-resolved)
// belongs to the mounted namespace, and if so its mount-relative
// form. /sys/ and /proc/ are always external regardless of where the
// mount lives.
func (r *Resolver) Classify(path string) (relative string, internal bool) {
	for _, p := range rejectedPrefixes {
		if strings.HasPrefix(path, p) {
			return "", false
		}
	}
	rel, ok := gkfspath.AbsoluteToRelative(r.mountDir, path)
	if !ok {
		return "", false
	}
	return rel, true
}

// Resolve cleans path (resolving "." and ".." components) and then
// classifies it.
func (r *Resolver) Resolve(path string) (relative string, internal bool) {
	if gkfspath.IsRelative(path) {
		// A bare relative path with no CWD context to anchor it
		// against is never ours. The one caller, fuseops' Symlink,
		// anchors a relative target at its directory itself and
		// passes only absolute targets here.
		return "", false
	}
	return r.Classify(gkfspath.Clean(path))
}

// MountDir returns the resolver's configured mount directory.
func (r *Resolver) MountDir() string { return r.mountDir }

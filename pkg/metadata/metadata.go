// Package metadata implements the per-inode record stored as the
// value side of the metadata key-value plane, its wire
// serialization, and the atomic compound-update operators
// (create/increase_size/decrease_size) the daemon applies to it.
package metadata

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const separator = '|'

// FieldConfig controls which optional fields participate in the wire
// format. It must be fixed once per daemon deployment and agreed by
// every participant; daemons advertise theirs via the fs_config RPC
// so clients serialize and parse identically.
type FieldConfig struct {
	UseAtime    bool
	UseMtime    bool
	UseCtime    bool
	UseLinkCnt  bool
	UseBlocks   bool
	HasSymlinks bool
}

// DefaultFieldConfig enables every optional field, matching a typical
// GekkoFS build.
var DefaultFieldConfig = FieldConfig{
	UseAtime:    true,
	UseMtime:    true,
	UseCtime:    true,
	UseLinkCnt:  true,
	UseBlocks:   true,
	HasSymlinks: true,
}

// Metadata is one inode's record: a regular file, a directory, or
// (when FieldConfig.HasSymlinks) a symlink.
type Metadata struct {
	Mode       os.FileMode
	Size       int64
	Atime      int64 // unix seconds
	Mtime      int64
	Ctime      int64
	LinkCount  uint32
	Blocks     int64
	TargetPath string // non-empty only for symlinks
}

// IsDir reports whether md represents a directory.
func (md Metadata) IsDir() bool { return md.Mode.IsDir() }

// IsLink reports whether md represents a symlink.
func (md Metadata) IsLink() bool { return md.Mode&os.ModeSymlink != 0 }

// NewRegular returns a zeroed regular-file record with the given
// permission bits set on top of the regular-file mode bit.
func NewRegular(perm os.FileMode) Metadata {
	return Metadata{Mode: perm &^ os.ModeType}
}

// NewDir returns a zeroed directory record with the given permission
// bits set on top of the directory mode bit.
func NewDir(perm os.FileMode) Metadata {
	return Metadata{Mode: os.ModeDir | (perm &^ os.ModeType), LinkCount: 2}
}

// NewSymlink returns a symlink record pointing at target.
func NewSymlink(perm os.FileMode, target string) Metadata {
	return Metadata{Mode: os.ModeSymlink | (perm &^ os.ModeType), TargetPath: target}
}

// Serialize encodes md per cfg into the `|`-separated wire format:
// mode, size, [atime], [mtime], [ctime], [link_count], [blocks],
// [target_path]. Field order and omission must match Parse exactly.
func Serialize(md Metadata, cfg FieldConfig) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(md.Mode), 10))
	b.WriteByte(separator)
	b.WriteString(strconv.FormatInt(md.Size, 10))
	if cfg.UseAtime {
		b.WriteByte(separator)
		b.WriteString(strconv.FormatInt(md.Atime, 10))
	}
	if cfg.UseMtime {
		b.WriteByte(separator)
		b.WriteString(strconv.FormatInt(md.Mtime, 10))
	}
	if cfg.UseCtime {
		b.WriteByte(separator)
		b.WriteString(strconv.FormatInt(md.Ctime, 10))
	}
	if cfg.UseLinkCnt {
		b.WriteByte(separator)
		b.WriteString(strconv.FormatUint(uint64(md.LinkCount), 10))
	}
	if cfg.UseBlocks {
		b.WriteByte(separator)
		b.WriteString(strconv.FormatInt(md.Blocks, 10))
	}
	if cfg.HasSymlinks {
		b.WriteByte(separator)
		b.WriteString(md.TargetPath)
	}
	return b.String()
}

// Parse decodes a wire string produced by Serialize with the same
// FieldConfig.
func Parse(s string, cfg FieldConfig) (Metadata, error) {
	fields := strings.Split(s, string(separator))
	var md Metadata
	idx := 0
	next := func(name string) (string, error) {
		if idx >= len(fields) {
			return "", fmt.Errorf("metadata: missing field %s", name)
		}
		v := fields[idx]
		idx++
		return v, nil
	}

	modeStr, err := next("mode")
	if err != nil {
		return md, err
	}
	mode, err := strconv.ParseUint(modeStr, 10, 32)
	if err != nil {
		return md, fmt.Errorf("metadata: invalid mode %q: %w", modeStr, err)
	}
	md.Mode = os.FileMode(mode)

	sizeStr, err := next("size")
	if err != nil {
		return md, err
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return md, fmt.Errorf("metadata: invalid size %q: %w", sizeStr, err)
	}
	md.Size = size

	if cfg.UseAtime {
		v, err := next("atime")
		if err != nil {
			return md, err
		}
		md.Atime, _ = strconv.ParseInt(v, 10, 64)
	}
	if cfg.UseMtime {
		v, err := next("mtime")
		if err != nil {
			return md, err
		}
		md.Mtime, _ = strconv.ParseInt(v, 10, 64)
	}
	if cfg.UseCtime {
		v, err := next("ctime")
		if err != nil {
			return md, err
		}
		md.Ctime, _ = strconv.ParseInt(v, 10, 64)
	}
	if cfg.UseLinkCnt {
		v, err := next("link_count")
		if err != nil {
			return md, err
		}
		lc, _ := strconv.ParseUint(v, 10, 32)
		md.LinkCount = uint32(lc)
	}
	if cfg.UseBlocks {
		v, err := next("blocks")
		if err != nil {
			return md, err
		}
		md.Blocks, _ = strconv.ParseInt(v, 10, 64)
	}
	if cfg.HasSymlinks {
		// target_path is the remainder, rejoined in case it ever
		// contained the separator (it shouldn't, paths don't).
		if idx < len(fields) {
			md.TargetPath = strings.Join(fields[idx:], string(separator))
		}
	}
	return md, nil
}

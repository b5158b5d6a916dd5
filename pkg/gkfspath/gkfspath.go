// Package gkfspath implements the pure path-string manipulation used
// throughout the mount-relative namespace: splitting, joining,
// dirname, and absolute/relative classification. These are plain
// functions operating on "/"-separated strings, independent of the
// host filesystem.
package gkfspath

import "strings"

const Separator = '/'

// IsAbsolute reports whether path is non-empty and starts with the
// path separator.
func IsAbsolute(path string) bool {
	return path != "" && path[0] == Separator
}

// IsRelative reports whether path is non-empty and does not start
// with the path separator.
func IsRelative(path string) bool {
	return path != "" && path[0] != Separator
}

// HasTrailingSlash reports whether path is non-empty and ends with
// the path separator.
func HasTrailingSlash(path string) bool {
	return path != "" && path[len(path)-1] == Separator
}

// Prepend joins prefix and raw with a single separator. prefix must
// not already have a trailing slash.
func Prepend(prefix, raw string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + len(raw))
	b.WriteString(prefix)
	b.WriteByte(Separator)
	b.WriteString(raw)
	return b.String()
}

// Split breaks path into its non-empty components, ignoring a leading
// slash. Split("/first/second/third") == []string{"first", "second", "third"}.
func Split(path string) []string {
	var tokens []string
	for _, c := range strings.Split(path, string(Separator)) {
		if c != "" {
			tokens = append(tokens, c)
		}
	}
	return tokens
}

// AbsoluteToRelative rewrites absPath as relative to root. If absPath
// does not have root as a path prefix, it returns "", false. The
// result never has a trailing slash (except the root itself, which
// maps to "/").
func AbsoluteToRelative(root, absPath string) (string, bool) {
	if !strings.HasPrefix(absPath, root) {
		return "", false
	}
	rel := absPath[len(root):]
	if rel == "" {
		return "/", true
	}
	if rel[0] != Separator {
		// root matched only a partial component, e.g. root=/mnt/g
		// absPath=/mnt/gekko.
		return "", false
	}
	if HasTrailingSlash(rel) && len(rel) > 1 {
		rel = rel[:len(rel)-1]
	}
	return rel, true
}

// Dirname returns the parent directory of path, which must be
// absolute and without a trailing slash (unless path is exactly "/").
func Dirname(path string) string {
	if path == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(path, Separator)
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// Clean normalizes "." and ".." components of an absolute path
// without touching the host filesystem. It never returns a path with
// a trailing slash, except for "/" itself.
func Clean(path string) string {
	comps := Split(path)
	out := make([]string, 0, len(comps))
	for _, c := range comps {
		switch c {
		case ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

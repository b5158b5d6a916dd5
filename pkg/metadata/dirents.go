package metadata

import "strings"

// Dirent is one entry returned by Dirents: a child name (not a full
// path) plus whether it is itself a directory.
type Dirent struct {
	Name  string
	IsDir bool
}

// Dirents lists the immediate children of dir (a mount-relative
// absolute path, "/" for root) via a prefix scan over the metadata
// KV: prefix is dir+"/" and entries with a further "/" beyond the
// prefix are skipped, one level only.
func (s *Store) Dirents(dir string) ([]Dirent, error) {
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}

	it := s.kv.Find(prefix)
	defer it.Close()

	var out []Dirent
	for it.Next() {
		key := it.Key()
		if !strings.HasPrefix(key, prefix) {
			break
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		if strings.Contains(rest, "/") {
			continue // nested beyond one level
		}
		md, err := Parse(it.Value(), s.cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, Dirent{Name: rest, IsDir: md.IsDir()})
	}
	return out, nil
}

package metadata

import "testing"

func TestDirentsOneLevelOnly(t *testing.T) {
	s := newTestStore()
	s.Create("/d", NewDir(0755))
	s.Create("/d/f1", NewRegular(0644))
	s.Create("/d/f2", NewRegular(0644))
	s.Create("/d/sub", NewDir(0755))
	s.Create("/d/sub/nested", NewRegular(0644))
	s.Create("/other", NewRegular(0644))

	ents, err := s.Dirents("/d")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"f1": false, "f2": false, "sub": true}
	if len(ents) != len(want) {
		t.Fatalf("Dirents(/d) = %v, want 3 entries matching %v", ents, want)
	}
	for _, e := range ents {
		isDir, ok := want[e.Name]
		if !ok {
			t.Errorf("unexpected entry %q", e.Name)
			continue
		}
		if e.IsDir != isDir {
			t.Errorf("entry %q: IsDir = %v, want %v", e.Name, e.IsDir, isDir)
		}
	}
}

func TestDirentsRoot(t *testing.T) {
	s := newTestStore()
	s.Create("/", NewDir(0755))
	s.Create("/a", NewRegular(0644))
	s.Create("/b", NewDir(0755))
	s.Create("/b/c", NewRegular(0644))

	ents, err := s.Dirents("/")
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, e := range ents {
		names[e.Name] = true
	}
	if !names["a"] || !names["b"] || names["c"] {
		t.Errorf("Dirents(/) = %v, want exactly {a,b}", ents)
	}
}

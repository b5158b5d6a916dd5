package memkv

import (
	"testing"

	"github.com/gekkofs/gekkofs/pkg/sorted"
)

func TestGetSetDelete(t *testing.T) {
	kv := New()
	if _, err := kv.Get("/a"); err != sorted.ErrNotFound {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}
	if err := kv.Set("/a", "1"); err != nil {
		t.Fatal(err)
	}
	v, err := kv.Get("/a")
	if err != nil || v != "1" {
		t.Fatalf("Get(/a) = (%q, %v), want (1, nil)", v, err)
	}
	if err := kv.Delete("/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Get("/a"); err != sorted.ErrNotFound {
		t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestFindPrefixScanOrder(t *testing.T) {
	kv := New()
	for _, k := range []string{"/d/b", "/d/a", "/c", "/d/c", "/e"} {
		kv.Set(k, k)
	}
	it := kv.Find("/d/")
	var got []string
	for it.Next() {
		if it.Key() >= "/e" {
			break
		}
		got = append(got, it.Key())
	}
	it.Close()
	want := []string{"/d/a", "/d/b", "/d/c"}
	if len(got) != len(want) {
		t.Fatalf("Find(/d/) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Find(/d/)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCommitBatch(t *testing.T) {
	kv := New()
	kv.Set("/x", "old")
	b := kv.BeginBatch()
	b.Set("/x", "new")
	b.Set("/y", "1")
	b.Delete("/z")
	if err := kv.CommitBatch(b); err != nil {
		t.Fatal(err)
	}
	if v, _ := kv.Get("/x"); v != "new" {
		t.Errorf("Get(/x) = %q, want new", v)
	}
	if v, _ := kv.Get("/y"); v != "1" {
		t.Errorf("Get(/y) = %q, want 1", v)
	}
}

package leveldbkv

import (
	"testing"

	"github.com/gekkofs/gekkofs/pkg/sorted"
)

func TestGetSetDelete(t *testing.T) {
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

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
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	for _, k := range []string{"/d/b", "/d/a", "/c", "/d/c", "/e"} {
		if err := kv.Set(k, k); err != nil {
			t.Fatal(err)
		}
	}
	it := kv.Find("/d/")
	var got []string
	for it.Next() {
		if it.Key() >= "/e" {
			break
		}
		got = append(got, it.Key())
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
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
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	if err := kv.Set("/x", "old"); err != nil {
		t.Fatal(err)
	}
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

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	kv, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set("/persist", "yes"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	kv2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer kv2.Close()
	v, err := kv2.Get("/persist")
	if err != nil || v != "yes" {
		t.Fatalf("Get(/persist) after reopen = (%q, %v), want (yes, nil)", v, err)
	}
}

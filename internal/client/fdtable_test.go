package client

import "testing"

func TestFdTableOpenFileAndRelease(t *testing.T) {
	tbl := NewFdTable()
	f := NewOpenFile("/a", 0)
	id := tbl.OpenFile(f)
	if id == 0 {
		t.Fatal("id 0 must never be issued")
	}
	got, ok := tbl.File(id)
	if !ok || got != f {
		t.Fatalf("File(%d) = %v, %v", id, got, ok)
	}
	tbl.Release(id)
	if _, ok := tbl.File(id); ok {
		t.Fatalf("File(%d) still present after Release", id)
	}
}

func TestFdTableDisjointIDs(t *testing.T) {
	tbl := NewFdTable()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := tbl.OpenFile(NewOpenFile("/x", 0))
		if seen[id] {
			t.Fatalf("id %d reused while still live", id)
		}
		seen[id] = true
	}
}

func TestFdTableWraparoundSkipsLiveIDs(t *testing.T) {
	tbl := NewFdTable()
	tbl.next = ^uint64(0) // force an immediate wrap on the next allocate

	first := tbl.OpenFile(NewOpenFile("/a", 0))
	if first != ^uint64(0) {
		t.Fatalf("first id = %d, want max uint64", first)
	}
	second := tbl.OpenFile(NewOpenFile("/b", 0))
	if second != 1 {
		t.Fatalf("second id after wrap = %d, want 1", second)
	}

	// id 1 is now live; force next back to 1 and confirm the
	// allocator skips past the live id instead of colliding.
	tbl.next = 1
	third := tbl.OpenFile(NewOpenFile("/c", 0))
	if third == 1 {
		t.Fatalf("allocate() reused live id 1")
	}
}

func TestFdTableFilesAndDirsAreDisjointNamespaces(t *testing.T) {
	tbl := NewFdTable()
	fileID := tbl.OpenFile(NewOpenFile("/a", 0))
	dirID := tbl.OpenDir(NewOpenDir("/b", nil))
	if fileID == dirID {
		t.Fatalf("file and dir ids collided: %d", fileID)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
}

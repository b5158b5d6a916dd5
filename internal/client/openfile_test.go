package client

import (
	"os"
	"testing"
)

func TestOpenFilePosAndAdvance(t *testing.T) {
	f := NewOpenFile("/a", os.O_RDWR)
	if f.Pos() != 0 {
		t.Fatalf("initial Pos() = %d, want 0", f.Pos())
	}
	f.SetPos(10)
	if f.Pos() != 10 {
		t.Fatalf("Pos() after SetPos(10) = %d, want 10", f.Pos())
	}
	if got := f.Advance(5); got != 15 {
		t.Fatalf("Advance(5) = %d, want 15", got)
	}
	if f.Pos() != 15 {
		t.Fatalf("Pos() after Advance(5) = %d, want 15", f.Pos())
	}
}

func TestOpenFileFlags(t *testing.T) {
	f := NewOpenFile("/a", os.O_WRONLY|os.O_APPEND)
	if f.Flags()&os.O_APPEND == 0 {
		t.Fatal("Flags() lost O_APPEND")
	}
	if f.Flags()&os.O_WRONLY == 0 {
		t.Fatal("Flags() lost O_WRONLY")
	}
}

func TestOpenDirNextAndRewind(t *testing.T) {
	d := NewOpenDir("/dir", []DirEntry{{Name: "a"}, {Name: "b"}})

	e, ok := d.Next()
	if !ok || e.Name != "a" {
		t.Fatalf("first Next() = %+v, %v, want a, true", e, ok)
	}
	e, ok = d.Next()
	if !ok || e.Name != "b" {
		t.Fatalf("second Next() = %+v, %v, want b, true", e, ok)
	}
	if _, ok := d.Next(); ok {
		t.Fatal("Next() past the end should report false")
	}

	d.Rewind()
	e, ok = d.Next()
	if !ok || e.Name != "a" {
		t.Fatalf("Next() after Rewind() = %+v, %v, want a, true", e, ok)
	}
}

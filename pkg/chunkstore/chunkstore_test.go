package chunkstore

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello\x00world")
	if _, err := s.WriteChunk("/a", 0, 0, int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := s.ReadChunk("/a", 0, 0, int64(len(data)), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) || !bytes.Equal(buf.Bytes(), data) {
		t.Fatalf("ReadChunk = (%d, %q), want (%d, %q)", n, buf.Bytes(), len(data), data)
	}
}

func TestSparseReadReturnsZeroBytesNoError(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := s.ReadChunk("/never-written", 3, 0, 100, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || buf.Len() != 0 {
		t.Fatalf("ReadChunk on unwritten chunk = (%d, %q), want (0, \"\")", n, buf.Bytes())
	}
}

func TestTruncateChunkSpace(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for id := int64(0); id < 4; id++ {
		s.WriteChunk("/f", id, 0, 10, bytes.NewReader(bytes.Repeat([]byte{'x'}, 10)))
	}
	if err := s.TruncateChunkSpace("/f", 2, 4); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	// chunk 1 should now be truncated to 4 bytes.
	n, err := s.ReadChunk("/f", 1, 0, 10, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("chunk 1 after truncate: read %d bytes, want 4", n)
	}
	// chunk 2 should be gone (sparse).
	buf.Reset()
	n, err = s.ReadChunk("/f", 2, 0, 10, &buf)
	if err != nil || n != 0 {
		t.Errorf("chunk 2 after truncate: (%d,%v), want (0,nil)", n, err)
	}
}

// TestTruncateChunkSpaceRetainsContent uses a distinct byte value per
// chunk so a truncate that shrinks the wrong chunk (or zero-pads
// instead of preserving real bytes) is distinguishable from a correct
// shrink, unlike a uniform-byte payload where both look identical.
func TestTruncateChunkSpaceRetainsContent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for id := int64(0); id < 3; id++ {
		b := byte('a' + id)
		if _, err := s.WriteChunk("/f", id, 0, 10, bytes.NewReader(bytes.Repeat([]byte{b}, 10))); err != nil {
			t.Fatal(err)
		}
	}
	// Keep chunk 1 whole, shrink chunk 2 to its first 4 bytes, drop chunk 3+.
	if err := s.TruncateChunkSpace("/f", 3, 4); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := s.ReadChunk("/f", 0, 0, 10, &buf); err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat([]byte{'a'}, 10); !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("chunk 0 after truncate = %q, want %q (untouched chunk corrupted)", buf.Bytes(), want)
	}

	buf.Reset()
	n, err := s.ReadChunk("/f", 1, 0, 10, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat([]byte{'b'}, 10); n != 10 || !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("chunk 1 after truncate = (%d,%q), want (10,%q) (untouched chunk corrupted)", n, buf.Bytes(), want)
	}

	buf.Reset()
	n, err = s.ReadChunk("/f", 2, 0, 10, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat([]byte{'c'}, 4); n != 4 || !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("chunk 2 after truncate = (%d,%q), want (4,%q) (shrunk chunk's surviving bytes corrupted)", n, buf.Bytes(), want)
	}
}

func TestRemoveChunkDirIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.WriteChunk("/f", 0, 0, 3, bytes.NewReader([]byte("abc")))
	if err := s.RemoveChunkDir("/f"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveChunkDir("/f"); err != nil {
		t.Fatalf("second RemoveChunkDir should be a no-op, got %v", err)
	}
	var buf bytes.Buffer
	n, _ := s.ReadChunk("/f", 0, 0, 3, &buf)
	if n != 0 {
		t.Errorf("data still present after RemoveChunkDir")
	}
}

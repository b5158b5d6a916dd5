package daemon

import (
	"bytes"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/gekkofs/gekkofs/pkg/chunkstore"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/sorted/memkv"
)

func newTestMetadataOps(t *testing.T) *MetadataOps {
	t.Helper()
	store := metadata.NewStore(memkv.New(), metadata.DefaultFieldConfig)
	chunks, err := chunkstore.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewMetadataOps(store, chunks)
}

func TestMetadataOpsCreateStatRemove(t *testing.T) {
	m := newTestMetadataOps(t)

	if errno := m.Create("/foo", 0644); errno != nil {
		t.Fatalf("Create errno = %v", errno)
	}
	if errno := m.Create("/foo", 0644); errno == nil || errno.Code != syscall.EEXIST {
		t.Fatalf("Create duplicate errno = %v, want EEXIST", errno)
	}

	if _, errno := m.Stat("/foo"); errno != nil {
		t.Fatalf("Stat errno = %v", errno)
	}
	if _, errno := m.Stat("/missing"); errno == nil || errno.Code != syscall.ENOENT {
		t.Fatalf("Stat missing errno = %v, want ENOENT", errno)
	}

	if errno := m.Remove("/foo"); errno != nil {
		t.Fatalf("Remove errno = %v", errno)
	}
	if _, errno := m.Stat("/foo"); errno == nil || errno.Code != syscall.ENOENT {
		t.Fatalf("Stat after remove errno = %v, want ENOENT", errno)
	}
}

func TestMetadataOpsRemoveIsIdempotentPerRecipient(t *testing.T) {
	// A remove for a file with data is broadcast to every host. A
	// recipient may hold chunks but not the metadata key, the key but
	// no chunks, or neither; each shape must succeed and leave no
	// chunk directory behind.
	m := newTestMetadataOps(t)

	// Chunks without the metadata key (the chunk-owning host's view
	// of a file whose metadata lives elsewhere).
	if _, err := m.chunks.WriteChunk("/data", 0, 0, 5, strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}
	if errno := m.Remove("/data"); errno != nil {
		t.Fatalf("Remove on a host without the metadata key errno = %v, want nil", errno)
	}
	var buf bytes.Buffer
	if n, _ := m.chunks.ReadChunk("/data", 0, 0, 5, &buf); n != 0 {
		t.Fatal("chunk directory survived Remove")
	}

	// The metadata key without chunks.
	if errno := m.Create("/meta-only", 0644); errno != nil {
		t.Fatal(errno)
	}
	if errno := m.Remove("/meta-only"); errno != nil {
		t.Fatalf("Remove on the metadata-owning host errno = %v, want nil", errno)
	}
	if _, errno := m.Stat("/meta-only"); errno == nil || errno.Code != syscall.ENOENT {
		t.Fatalf("Stat after remove errno = %v, want ENOENT", errno)
	}

	// Neither: a recipient that never saw the file.
	if errno := m.Remove("/never-seen"); errno != nil {
		t.Fatalf("Remove on an uninvolved host errno = %v, want nil", errno)
	}
}

func TestMetadataOpsIncreaseDecreaseSize(t *testing.T) {
	m := newTestMetadataOps(t)
	if errno := m.Create("/f", 0644); errno != nil {
		t.Fatal(errno)
	}
	n, errno := m.IncreaseSize("/f", 50, true)
	if errno != nil {
		t.Fatal(errno)
	}
	if n != 50 {
		t.Fatalf("size = %d, want 50", n)
	}
	n, errno = m.IncreaseSize("/f", 30, true)
	if errno != nil {
		t.Fatal(errno)
	}
	if n != 80 {
		t.Fatalf("size after append = %d, want 80", n)
	}

	if errno := m.DecreaseSize("/f", 10); errno != nil {
		t.Fatal(errno)
	}
	size, errno := m.GetSize("/f")
	if errno != nil {
		t.Fatal(errno)
	}
	if size != 10 {
		t.Fatalf("size after decrease = %d, want 10", size)
	}
}

func TestMetadataOpsSymlinkDisabledReturnsENOTSUP(t *testing.T) {
	cfg := metadata.DefaultFieldConfig
	cfg.HasSymlinks = false
	store := metadata.NewStore(memkv.New(), cfg)
	chunks, err := chunkstore.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := NewMetadataOps(store, chunks)
	if errno := m.Symlink("/link", "/target"); errno == nil || errno.Code != syscall.ENOTSUP {
		t.Fatalf("Symlink errno = %v, want ENOTSUP", errno)
	}
}

func TestMetadataOpsDirents(t *testing.T) {
	m := newTestMetadataOps(t)
	if errno := m.Create("/dir", os.ModeDir|0755); errno != nil {
		t.Fatal(errno)
	}
	if errno := m.Create("/dir/a", 0644); errno != nil {
		t.Fatal(errno)
	}
	if errno := m.Create("/dir/b", os.ModeDir|0755); errno != nil {
		t.Fatal(errno)
	}
	ents, errno := m.Dirents("/dir")
	if errno != nil {
		t.Fatal(errno)
	}
	if len(ents) != 2 {
		t.Fatalf("Dirents len = %d, want 2", len(ents))
	}
}

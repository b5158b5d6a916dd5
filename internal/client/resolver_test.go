package client

import "testing"

func TestResolverClassifyInternal(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	rel, internal := r.Classify("/mnt/gkfs/dir/file")
	if !internal {
		t.Fatal("expected internal classification")
	}
	if rel != "/dir/file" {
		t.Fatalf("rel = %q", rel)
	}
}

func TestResolverClassifyExternal(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	cases := []string{
		"/etc/passwd",
		"/mnt/gekko/other", // shares a textual prefix but not a path component
		"/sys/class/x",
		"/proc/self/fd/0",
	}
	for _, p := range cases {
		if _, internal := r.Classify(p); internal {
			t.Errorf("Classify(%q) = internal, want external", p)
		}
	}
}

func TestResolverRejectsSysAndProcEvenUnderMount(t *testing.T) {
	r := NewResolver("/")
	if _, internal := r.Classify("/sys/devices"); internal {
		t.Fatal("/sys/ must never classify as internal")
	}
	if _, internal := r.Classify("/proc/1"); internal {
		t.Fatal("/proc/ must never classify as internal")
	}
}

func TestResolverClassifyMountRootItself(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	rel, internal := r.Classify("/mnt/gkfs")
	if !internal || rel != "/" {
		t.Fatalf("Classify(mountdir) = %q, %v, want \"/\", true", rel, internal)
	}
}

func TestResolverResolveHandlesDotDot(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	rel, internal := r.Resolve("/mnt/gkfs/a/../b")
	if !internal || rel != "/b" {
		t.Fatalf("Resolve = %q, %v, want \"/b\", true", rel, internal)
	}
}

func TestResolverResolveRejectsBareRelativePath(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	if _, internal := r.Resolve("relative/path"); internal {
		t.Fatal("a bare relative path must never classify as internal")
	}
}

// Classification is total: every path is either internal with a
// well-formed relative form, or external. Never both, never neither.
func TestResolverClassificationIsTotal(t *testing.T) {
	r := NewResolver("/mnt/gkfs")
	paths := []string{"/mnt/gkfs", "/mnt/gkfs/", "/mnt/gkfs/a", "/other", "/mnt/gkfsx", "/"}
	for _, p := range paths {
		rel, internal := r.Classify(p)
		if internal && rel == "" {
			t.Errorf("Classify(%q) internal but empty relative form", p)
		}
		if !internal && rel != "" {
			t.Errorf("Classify(%q) external but non-empty relative form %q", p, rel)
		}
	}
}

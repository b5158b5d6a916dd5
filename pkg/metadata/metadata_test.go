package metadata

import (
	"os"
	"testing"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	md := Metadata{
		Mode:      os.FileMode(0644),
		Size:      12345,
		Atime:     111,
		Mtime:     222,
		Ctime:     333,
		LinkCount: 1,
		Blocks:    24,
	}
	s := Serialize(md, DefaultFieldConfig)
	got, err := Parse(s, DefaultFieldConfig)
	if err != nil {
		t.Fatal(err)
	}
	if got != md {
		t.Errorf("round trip = %+v, want %+v", got, md)
	}
}

func TestSerializeParseOmittedFields(t *testing.T) {
	cfg := FieldConfig{} // every optional field disabled
	md := Metadata{Mode: 0755, Size: 99}
	s := Serialize(md, cfg)
	if s != "493|99" {
		t.Errorf("Serialize with no optional fields = %q, want %q", s, "493|99")
	}
	got, err := Parse(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != md.Mode || got.Size != md.Size {
		t.Errorf("Parse = %+v, want %+v", got, md)
	}
}

func TestSymlinkRoundTrip(t *testing.T) {
	md := NewSymlink(0777, "/a/b/c")
	s := Serialize(md, DefaultFieldConfig)
	got, err := Parse(s, DefaultFieldConfig)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsLink() || got.TargetPath != "/a/b/c" {
		t.Errorf("Parse = %+v, want symlink to /a/b/c", got)
	}
}

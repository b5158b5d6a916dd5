package distributor

import "testing"

func TestHashDistributorStability(t *testing.T) {
	d1 := NewHashDistributor(4)
	d2 := NewHashDistributor(4)
	paths := []string{"/a", "/a/b/c", "/", "/very/long/path/name/here"}
	for _, p := range paths {
		if d1.LocateMetadata(p) != d2.LocateMetadata(p) {
			t.Errorf("LocateMetadata(%q) differs between independent instances", p)
		}
		for id := int64(0); id < 8; id++ {
			if d1.LocateData(p, id) != d2.LocateData(p, id) {
				t.Errorf("LocateData(%q, %d) differs between independent instances", p, id)
			}
		}
	}
}

func TestHashDistributorInRange(t *testing.T) {
	d := NewHashDistributor(3)
	for id := int64(0); id < 100; id++ {
		if h := d.LocateData("/x", id); h >= 3 {
			t.Fatalf("LocateData returned host %d out of range [0,3)", h)
		}
	}
}

func TestForwardingDistributorAlwaysSameHost(t *testing.T) {
	d := NewForwardingDistributor(2, 4)
	if d.LocateMetadata("/a") != 2 || d.LocateData("/a", 7) != 2 {
		t.Errorf("ForwardingDistributor should always return host 2")
	}
}

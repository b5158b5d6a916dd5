package chunk

import "testing"

func TestComputeRangeReconstructsSize(t *testing.T) {
	cases := []struct {
		off, n int64
	}{
		{0, 1},
		{0, Size},
		{1, Size},
		{Size - 1, 2},
		{Size + 1, Size},
		{3*Size + 100, 2*Size + 7},
	}
	for _, c := range cases {
		r := ComputeRange(c.off, c.n)
		var total int64
		for id := r.Start; id <= r.End; id++ {
			total += r.ChunkSize(id)
		}
		if total != c.n {
			t.Errorf("off=%d n=%d: reconstructed %d bytes, want %d (range=%+v)", c.off, c.n, total, c.n, r)
		}
	}
}

func TestIDLeftPadRightPad(t *testing.T) {
	if got := ID(0); got != 0 {
		t.Errorf("ID(0) = %d, want 0", got)
	}
	if got := ID(Size); got != 1 {
		t.Errorf("ID(Size) = %d, want 1", got)
	}
	if got := LeftPad(Size + 5); got != 5 {
		t.Errorf("LeftPad(Size+5) = %d, want 5", got)
	}
	if got := RightPad(Size - 5); got != 5 {
		t.Errorf("RightPad(Size-5) = %d, want 5", got)
	}
	if got := RightPad(Size); got != 0 {
		t.Errorf("RightPad(Size) = %d, want 0", got)
	}
}

func TestSingleChunkWithinBounds(t *testing.T) {
	r := ComputeRange(100, 50)
	if r.Start != r.End {
		t.Fatalf("expected single chunk, got %+v", r)
	}
	if r.ChunkSize(r.Start) != 50 {
		t.Errorf("ChunkSize = %d, want 50", r.ChunkSize(r.Start))
	}
}

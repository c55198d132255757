package params

import "testing"

func TestNewDerivesFanout(t *testing.T) {
	p, err := New(4096, 8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Fanout <= 0 {
		t.Fatalf("expected positive fanout, got %d", p.Fanout)
	}
	// leaf slot is 16 bytes, node slot is 16 bytes (8 key + 8 address):
	// both header types are the same 4-byte width, so fanout should be
	// identical either way here.
	want := (4096 - 4) / 16
	if p.Fanout != want {
		t.Errorf("Fanout = %d, want %d", p.Fanout, want)
	}
}

func TestNewTakesMinOfLeafAndNodeFanout(t *testing.T) {
	// A large value size makes the leaf slot much wider than the node
	// slot, so fewer leaf entries fit a page; Fanout must track the leaf.
	p, err := New(4096, 8, 200)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	leafFanout := (4096 - 4) / (8 + 200)
	if p.Fanout != leafFanout {
		t.Errorf("Fanout = %d, want leaf-limited %d", p.Fanout, leafFanout)
	}
}

func TestNewRejectsNonPositiveSizes(t *testing.T) {
	if _, err := New(0, 8, 8); err == nil {
		t.Error("expected error for zero page size")
	}
	if _, err := New(4096, 0, 8); err == nil {
		t.Error("expected error for zero key size")
	}
	if _, err := New(4096, 8, -1); err == nil {
		t.Error("expected error for negative value size")
	}
}

func TestNewRejectsFanoutTooSmall(t *testing.T) {
	if _, err := New(16, 8, 8); err == nil {
		t.Error("expected error for a page too small to hold 3 entries")
	}
}

func TestWithDebug(t *testing.T) {
	p, err := New(4096, 8, 8, WithDebug(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.Debug {
		t.Error("expected Debug to be true")
	}
}

func TestMinFanout(t *testing.T) {
	p, err := New(4096, 8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := (p.Fanout + 1) / 2
	if p.MinFanout() != want {
		t.Errorf("MinFanout = %d, want %d", p.MinFanout(), want)
	}
}

func TestMinFanoutRoundsUpForOddFanout(t *testing.T) {
	// fanout=5 must yield MinFanout=3 (ceil(5/2)), not 2 (floor(5/2)):
	// a page sitting at 2 entries is below ceil(fanout/2)=3 and must be
	// reported as underflowing.
	p := &Params{Fanout: 5}
	if got := p.MinFanout(); got != 3 {
		t.Errorf("MinFanout() for fanout=5 = %d, want 3", got)
	}
}

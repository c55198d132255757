package pagefmt

import "testing"

func TestKindLeafAndNode(t *testing.T) {
	if !KindLeaf.IsLeaf() {
		t.Error("KindLeaf.IsLeaf() = false")
	}
	if KindLeaf.Depth() != 0 {
		t.Errorf("KindLeaf.Depth() = %d, want 0", KindLeaf.Depth())
	}
	nk := NodeKind(3)
	if nk.IsLeaf() {
		t.Error("NodeKind(3).IsLeaf() = true")
	}
	if nk.Depth() != 3 {
		t.Errorf("NodeKind(3).Depth() = %d, want 3", nk.Depth())
	}
}

func TestReadWriteKindAndCount(t *testing.T) {
	buf := make([]byte, 64)
	WriteKind(buf, NodeKind(2))
	WriteCount(buf, 17)

	kind, err := ReadKind(buf)
	if err != nil {
		t.Fatalf("ReadKind: %v", err)
	}
	if kind.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", kind.Depth())
	}
	if ReadCount(buf) != 17 {
		t.Errorf("ReadCount() = %d, want 17", ReadCount(buf))
	}
}

func TestReadKindRejectsShortBuffer(t *testing.T) {
	if _, err := ReadKind([]byte{0, 1}); err == nil {
		t.Error("expected error for a buffer shorter than HeaderSize")
	}
}

func TestSlotOffset(t *testing.T) {
	if got := SlotOffset(0, 16); got != HeaderSize {
		t.Errorf("SlotOffset(0, 16) = %d, want %d", got, HeaderSize)
	}
	if got := SlotOffset(3, 16); got != HeaderSize+48 {
		t.Errorf("SlotOffset(3, 16) = %d, want %d", got, HeaderSize+48)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutAddress(buf, Address(123456))
	if got := GetAddress(buf); got != 123456 {
		t.Errorf("GetAddress = %d, want 123456", got)
	}
}

func TestInvalidAddressString(t *testing.T) {
	if InvalidAddress.String() != "<invalid>" {
		t.Errorf("InvalidAddress.String() = %q", InvalidAddress.String())
	}
	if Address(0).String() != "0" {
		t.Errorf("Address(0).String() = %q", Address(0).String())
	}
	if Address(42).String() != "42" {
		t.Errorf("Address(42).String() = %q", Address(42).String())
	}
}

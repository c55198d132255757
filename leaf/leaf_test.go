package leaf_test

import (
	"testing"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/leaf"
	"github.com/kvindex/btreekv/params"
	"github.com/kvindex/btreekv/store"
)

// fanout4Store opens a store whose Params derive a fanout of exactly 4,
// matching the concrete scenarios spec §8 walks through.
func fanout4Store(t *testing.T) (*store.Store, kvcodec.Codec) {
	t.Helper()
	codec := kvcodec.NewInt64FixedBytesCodec(8)
	// header(4) + 4*(8+8) = 68 fits a leaf page; the node page
	// (8+AddressSize=16 per slot) needs the same budget, so both leaf and
	// node fanout land on 4 at this page size.
	p, err := params.New(68, codec.KeySize(), codec.ValueSize())
	if err != nil {
		t.Fatalf("params.New: %v", err)
	}
	if p.Fanout != 4 {
		t.Fatalf("test fixture drifted: Fanout = %d, want 4", p.Fanout)
	}
	s, err := store.Init(t.TempDir(), p, 0)
	if err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, codec
}

func kv(codec kvcodec.Codec, k int64) (kvcodec.Key, kvcodec.Value) {
	fb := codec.(*kvcodec.Int64FixedBytesCodec)
	v, _ := fb.EncodeValue([]byte{byte(k)})
	return kvcodec.Int64Key(k), v
}

func TestLeafAddFindMem(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	k1, v1 := kv(codec, 1)
	k2, v2 := kv(codec, 2)
	lf.Add(k1, v1)
	lf.Add(k2, v2)

	if lf.Length() != 2 {
		t.Fatalf("Length() = %d, want 2", lf.Length())
	}
	got, err := lf.Find(kvcodec.Int64Key(2))
	if err != nil {
		t.Fatalf("Find(2): %v", err)
	}
	if got.String() != v2.String() {
		t.Errorf("Find(2) = %v, want %v", got, v2)
	}
	if lf.Mem(kvcodec.Int64Key(3)) {
		t.Error("Mem(3) = true, want false")
	}
	if _, err := lf.Find(kvcodec.Int64Key(3)); !errs.IsNotFound(err) {
		t.Errorf("Find(3) error = %v, want NotFound", err)
	}
}

func TestLeafAddOverwritesAndKeepsLengthStable(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	k, v1 := kv(codec, 7)
	_, v2 := kv(codec, 99) // distinct value bytes, same key
	lf.Add(k, v1)
	lf.Add(k, v2)

	if lf.Length() != 1 {
		t.Fatalf("Length() = %d, want 1 (overwrite must not grow the leaf)", lf.Length())
	}
	got, err := lf.Find(k)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.String() != v2.String() {
		t.Errorf("Find after overwrite = %v, want %v", got, v2)
	}
}

func TestLeafRemove(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	k, v := kv(codec, 5)
	lf.Add(k, v)
	lf.Remove(k)
	if lf.Mem(k) {
		t.Error("Mem after Remove = true, want false")
	}
	if lf.Length() != 0 {
		t.Errorf("Length after Remove = %d, want 0", lf.Length())
	}
	// Removing an absent key is a no-op, not an error.
	lf.Remove(kvcodec.Int64Key(123))
}

func TestLeafIterIsSorted(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, k := range []int64{3, 1, 4, 2} {
		key, val := kv(codec, k)
		lf.Add(key, val)
	}
	var seen []int64
	if err := lf.Iter(func(k kvcodec.Key, _ kvcodec.Value) error {
		seen = append(seen, int64(k.(kvcodec.Int64Key)))
		return nil
	}); err != nil {
		t.Fatalf("Iter: %v", err)
	}
	want := []int64{1, 2, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("Iter order = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Iter order = %v, want %v", seen, want)
		}
	}
}

func TestLeafOverflowAndUnderflow(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !lf.Underflow() {
		t.Error("a freshly created empty leaf should report Underflow (root exemption is the caller's job)")
	}
	for _, k := range []int64{1, 2, 3, 4} {
		key, val := kv(codec, k)
		lf.Add(key, val)
	}
	if lf.Overflow() {
		t.Error("a leaf with exactly Fanout entries should not overflow")
	}
	key, val := kv(codec, 5)
	lf.Add(key, val)
	if !lf.Overflow() {
		t.Error("a leaf with Fanout+1 entries should overflow")
	}
}

// TestLeafSplit matches spec §8 scenario 2: inserting 1..5 into a
// fanout-4 leaf and splitting produces a floor-split midpoint with the
// new leaf's leftmost key promoted.
func TestLeafSplit(t *testing.T) {
	s, codec := fanout4Store(t)
	lf, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, k := range []int64{1, 2, 3, 4, 5} {
		key, val := kv(codec, k)
		lf.Add(key, val)
	}
	if !lf.Overflow() {
		t.Fatal("expected overflow after 5 inserts at fanout 4")
	}

	promoted, newLeaf, err := lf.Split()
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if lf.Length() != 2 || newLeaf.Length() != 3 {
		t.Fatalf("split sizes = (%d, %d), want (2, 3) (floor-split midpoint)", lf.Length(), newLeaf.Length())
	}
	if int64(promoted.(kvcodec.Int64Key)) != 3 {
		t.Errorf("promoted key = %v, want 3", promoted)
	}
	if int64(newLeaf.Leftmost().(kvcodec.Int64Key)) != 3 {
		t.Errorf("new leaf's leftmost = %v, want 3", newLeaf.Leftmost())
	}
	if !lf.Mem(kvcodec.Int64Key(1)) || !lf.Mem(kvcodec.Int64Key(2)) {
		t.Error("left leaf should retain keys 1,2")
	}
	if !newLeaf.Mem(kvcodec.Int64Key(3)) || !newLeaf.Mem(kvcodec.Int64Key(4)) || !newLeaf.Mem(kvcodec.Int64Key(5)) {
		t.Error("new leaf should hold keys 3,4,5")
	}
}

func TestLeafMergeTotal(t *testing.T) {
	s, codec := fanout4Store(t)
	left, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	right, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, k := range []int64{1, 2} {
		key, val := kv(codec, k)
		left.Add(key, val)
	}
	for _, k := range []int64{3} {
		key, val := kv(codec, k)
		right.Add(key, val)
	}

	outcome, err := left.Merge(right)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != leaf.Total {
		t.Fatalf("outcome = %v, want Total (3 entries fit under fanout 4)", outcome)
	}
	if left.Length() != 3 {
		t.Fatalf("left.Length() = %d, want 3", left.Length())
	}
	for _, k := range []int64{1, 2, 3} {
		if !left.Mem(kvcodec.Int64Key(k)) {
			t.Errorf("left should contain %d after Total merge", k)
		}
	}
}

func TestLeafMergePartialKeepsBothAboveMinFanout(t *testing.T) {
	s, codec := fanout4Store(t)
	left, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	right, err := leaf.Create(s, codec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, k := range []int64{1, 2, 3} {
		key, val := kv(codec, k)
		left.Add(key, val)
	}
	for _, k := range []int64{4, 5, 6} {
		key, val := kv(codec, k)
		right.Add(key, val)
	}

	outcome, err := left.Merge(right)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome != leaf.Partial {
		t.Fatalf("outcome = %v, want Partial (6 entries exceed fanout 4)", outcome)
	}
	minFanout := s.Params().MinFanout()
	if left.Length() < minFanout || right.Length() < minFanout {
		t.Fatalf("post-merge sizes (%d, %d) must both be >= MinFanout %d", left.Length(), right.Length(), minFanout)
	}
	if left.Length()+right.Length() != 6 {
		t.Fatalf("post-merge total = %d, want 6", left.Length()+right.Length())
	}
}

// Package leaf implements spec §4.2: a sorted array of (Key,Value)
// records packed into one page. Binary search, insert-shift and
// split/merge are adapted directly from the teacher's
// dbms/index/btree/btree.go insertLeaf/splitLeaf/deleteFromLeaf — the
// same fixed-slot shift-and-pack style, generalized from a hardcoded
// int64 key + offset/length value record to the codec's arbitrary
// fixed-width (Key,Value) pair.
package leaf

import (
	"bytes"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/store"
)

// MergeOutcome reports what Merge did.
type MergeOutcome int

const (
	// Total means other was fully absorbed into self and its page freed.
	Total MergeOutcome = iota
	// Partial means capacity was exceeded: entries were redistributed so
	// both pages remain at or above fanout/2, and the caller must update
	// the parent separator for the right page (Node.replace).
	Partial
)

// Leaf is a view over one leaf page.
type Leaf struct {
	s     *store.Store
	addr  pagefmt.Address
	codec kvcodec.Codec
	buf   []byte
}

func slotSize(codec kvcodec.Codec) int { return codec.KeySize() + codec.ValueSize() }

// Create allocates a fresh page and initializes it as an empty leaf.
func Create(s *store.Store, codec kvcodec.Codec) (*Leaf, error) {
	addr, err := s.Alloc(pagefmt.KindLeaf)
	if err != nil {
		return nil, err
	}
	return Load(s, addr, codec)
}

// Load returns a Leaf view over addr, which must already hold a leaf
// page (Kind == KindLeaf).
func Load(s *store.Store, addr pagefmt.Address, codec kvcodec.Codec) (*Leaf, error) {
	buf, err := s.Load(addr)
	if err != nil {
		return nil, err
	}
	kind, err := pagefmt.ReadKind(buf)
	if err != nil {
		return nil, err
	}
	if !kind.IsLeaf() {
		return nil, errs.CorruptPage("page %s: expected leaf, found node depth %d", addr, kind.Depth())
	}
	return &Leaf{s: s, addr: addr, codec: codec, buf: buf}, nil
}

// SelfAddress returns the page address backing this view.
func (l *Leaf) SelfAddress() pagefmt.Address { return l.addr }

// Length returns the number of entries.
func (l *Leaf) Length() int { return pagefmt.ReadCount(l.buf) }

func (l *Leaf) slotOffset(i int) int { return pagefmt.SlotOffset(i, slotSize(l.codec)) }

func (l *Leaf) keyBytesAt(i int) []byte {
	off := l.slotOffset(i)
	return l.buf[off : off+l.codec.KeySize()]
}

func (l *Leaf) valueBytesAt(i int) []byte {
	off := l.slotOffset(i) + l.codec.KeySize()
	return l.buf[off : off+l.codec.ValueSize()]
}

func (l *Leaf) entryAt(i int) (kvcodec.Key, kvcodec.Value) {
	return l.codec.DecodeKey(l.keyBytesAt(i)), l.codec.DecodeValue(l.valueBytesAt(i))
}

func (l *Leaf) writeEntry(i int, key, value []byte) {
	off := l.slotOffset(i)
	copy(l.buf[off:off+l.codec.KeySize()], key)
	copy(l.buf[off+l.codec.KeySize():off+l.codec.KeySize()+l.codec.ValueSize()], value)
}

func (l *Leaf) setCount(n int) { pagefmt.WriteCount(l.buf, n) }

func (l *Leaf) markDirty() { l.s.MarkDirty(l.addr) }

// search returns the index of the first entry whose key is >= k, and
// whether that entry's key equals k exactly (binary search over packed
// raw bytes, same style as the teacher's findKeyIndex).
func (l *Leaf) search(k kvcodec.Key) (idx int, exact bool) {
	n := l.Length()
	target := k.Bytes()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		c := bytes.Compare(l.keyBytesAt(mid), target)
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n && bytes.Equal(l.keyBytesAt(lo), target) {
		return lo, true
	}
	return lo, false
}

// Find returns the value bound to k, or errs.ErrNotFound.
func (l *Leaf) Find(k kvcodec.Key) (kvcodec.Value, error) {
	idx, exact := l.search(k)
	if !exact {
		return nil, errs.ErrNotFound
	}
	_, v := l.entryAt(idx)
	return v, nil
}

// Mem reports whether k is present.
func (l *Leaf) Mem(k kvcodec.Key) bool {
	_, exact := l.search(k)
	return exact
}

// Add inserts or replaces the binding for k.
func (l *Leaf) Add(k kvcodec.Key, v kvcodec.Value) {
	idx, exact := l.search(k)
	n := l.Length()
	if exact {
		l.writeEntry(idx, k.Bytes(), v.Bytes())
		l.markDirty()
		return
	}
	for i := n; i > idx; i-- {
		copy(l.rawSlot(i), l.rawSlot(i-1))
	}
	l.writeEntry(idx, k.Bytes(), v.Bytes())
	l.setCount(n + 1)
	l.markDirty()
}

func (l *Leaf) rawSlot(i int) []byte {
	off := l.slotOffset(i)
	return l.buf[off : off+slotSize(l.codec)]
}

// Remove deletes k if present; a no-op otherwise.
func (l *Leaf) Remove(k kvcodec.Key) {
	idx, exact := l.search(k)
	if !exact {
		return
	}
	n := l.Length()
	for i := idx; i < n-1; i++ {
		copy(l.rawSlot(i), l.rawSlot(i+1))
	}
	l.setCount(n - 1)
	l.markDirty()
}

// Iter invokes f on every (key,value) in ascending order.
func (l *Leaf) Iter(f func(kvcodec.Key, kvcodec.Value) error) error {
	n := l.Length()
	for i := 0; i < n; i++ {
		k, v := l.entryAt(i)
		if err := f(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Overflow reports whether the leaf holds more than Fanout entries.
func (l *Leaf) Overflow() bool { return l.Length() > l.s.Params().Fanout }

// Underflow reports whether the leaf holds fewer than MinFanout entries.
// The root-leaf exemption (spec §3) is the caller's responsibility.
func (l *Leaf) Underflow() bool { return l.Length() < l.s.Params().MinFanout() }

// Leftmost returns the smallest key in the leaf. Only meaningful for a
// non-empty leaf.
func (l *Leaf) Leftmost() kvcodec.Key {
	k, _ := l.entryAt(0)
	return k
}

// Split splits the leaf into two roughly equal halves: self keeps the
// lower half, a freshly allocated leaf gets the upper half. The promoted
// key is the new leaf's leftmost key (spec §4.2).
func (l *Leaf) Split() (kvcodec.Key, *Leaf, error) {
	n := l.Length()
	mid := n / 2

	newLeaf, err := Create(l.s, l.codec)
	if err != nil {
		return nil, nil, err
	}
	for i := mid; i < n; i++ {
		key, val := l.entryAt(i)
		newLeaf.writeEntry(i-mid, key.Bytes(), val.Bytes())
	}
	newLeaf.setCount(n - mid)
	newLeaf.markDirty()

	l.setCount(mid)
	l.markDirty()

	promoted := newLeaf.Leftmost()
	return promoted, newLeaf, nil
}

// Merge attempts to absorb other's entries into self (self is assumed to
// be the left sibling, other the right). See MergeOutcome.
func (l *Leaf) Merge(other *Leaf) (MergeOutcome, error) {
	ln, rn := l.Length(), other.Length()
	fanout := l.s.Params().Fanout
	minFanout := l.s.Params().MinFanout()

	if ln+rn <= fanout {
		for i := 0; i < rn; i++ {
			key, val := other.entryAt(i)
			l.writeEntry(ln+i, key.Bytes(), val.Bytes())
		}
		l.setCount(ln + rn)
		l.markDirty()
		if err := l.s.Free(other.addr); err != nil {
			return Total, err
		}
		return Total, nil
	}

	// Partial: redistribute evenly so both sides clear the minimum.
	total := ln + rn
	leftNew := total / 2
	if leftNew < minFanout {
		leftNew = minFanout
	}

	all := make([][2][]byte, 0, total)
	for i := 0; i < ln; i++ {
		k, v := l.entryAt(i)
		all = append(all, [2][]byte{k.Bytes(), v.Bytes()})
	}
	for i := 0; i < rn; i++ {
		k, v := other.entryAt(i)
		all = append(all, [2][]byte{k.Bytes(), v.Bytes()})
	}

	for i := 0; i < leftNew; i++ {
		l.writeEntry(i, all[i][0], all[i][1])
	}
	l.setCount(leftNew)
	l.markDirty()

	for i := leftNew; i < total; i++ {
		other.writeEntry(i-leftNew, all[i][0], all[i][1])
	}
	other.setCount(total - leftNew)
	other.markDirty()

	return Partial, nil
}

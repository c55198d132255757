// Package node implements spec §4.3: a sorted array of (Key, child
// Address) routing records, the first always carrying the sentinel
// min_key. Grounded on the same fixed-slot shift-and-pack style as
// leaf (itself adapted from the teacher's dbms/index/btree/btree.go
// insertInternal/splitInternal/mergeNodes), plus find_with_neighbour,
// which generalizes the teacher's childPageID/rebalance sibling lookup
// into the single-pass "pick main + one neighbour" contract this spec
// calls for.
package node

import (
	"bytes"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/params"
	"github.com/kvindex/btreekv/store"
)

// MergeOutcome mirrors leaf.MergeOutcome.
type MergeOutcome int

const (
	Total MergeOutcome = iota
	Partial
)

// Order says which side of main the neighbour FindWithNeighbour picked
// is on.
type Order int

const (
	// Higher means neighbour is main's immediate right sibling.
	Higher Order = iota
	// Lower means neighbour is main's immediate left sibling (only used
	// when main is the last entry).
	Lower
)

// Node is a view over one internal page.
type Node struct {
	s     *store.Store
	addr  pagefmt.Address
	codec kvcodec.Codec
	buf   []byte
}

func slotSize(codec kvcodec.Codec) int { return codec.KeySize() + params.AddressSize }

// Create allocates a fresh page and initializes it as an empty node of
// the given depth (depth >= 1).
func Create(s *store.Store, codec kvcodec.Codec, depth int) (*Node, error) {
	if depth < 1 {
		return nil, errs.AssertionViolation("node depth must be >= 1, got %d", depth)
	}
	addr, err := s.Alloc(pagefmt.NodeKind(depth))
	if err != nil {
		return nil, err
	}
	return Load(s, addr, codec)
}

// Load returns a Node view over addr, which must already hold a node
// page (Kind.Depth() >= 1).
func Load(s *store.Store, addr pagefmt.Address, codec kvcodec.Codec) (*Node, error) {
	buf, err := s.Load(addr)
	if err != nil {
		return nil, err
	}
	kind, err := pagefmt.ReadKind(buf)
	if err != nil {
		return nil, err
	}
	if kind.IsLeaf() {
		return nil, errs.CorruptPage("page %s: expected node, found leaf", addr)
	}
	return &Node{s: s, addr: addr, codec: codec, buf: buf}, nil
}

func (n *Node) SelfAddress() pagefmt.Address { return n.addr }
func (n *Node) Length() int                  { return pagefmt.ReadCount(n.buf) }

func (n *Node) Depth() int {
	kind, _ := pagefmt.ReadKind(n.buf)
	return kind.Depth()
}

func (n *Node) slotOffset(i int) int { return pagefmt.SlotOffset(i, slotSize(n.codec)) }

func (n *Node) keyBytesAt(i int) []byte {
	off := n.slotOffset(i)
	return n.buf[off : off+n.codec.KeySize()]
}

func (n *Node) addrBytesAt(i int) []byte {
	off := n.slotOffset(i) + n.codec.KeySize()
	return n.buf[off : off+params.AddressSize]
}

func (n *Node) entryAt(i int) (kvcodec.Key, pagefmt.Address) {
	return n.codec.DecodeKey(n.keyBytesAt(i)), pagefmt.GetAddress(n.addrBytesAt(i))
}

func (n *Node) rawSlot(i int) []byte {
	off := n.slotOffset(i)
	return n.buf[off : off+slotSize(n.codec)]
}

func (n *Node) writeEntry(i int, key []byte, addr pagefmt.Address) {
	off := n.slotOffset(i)
	copy(n.buf[off:off+n.codec.KeySize()], key)
	pagefmt.PutAddress(n.buf[off+n.codec.KeySize():], addr)
}

func (n *Node) setCount(c int) { pagefmt.WriteCount(n.buf, c) }
func (n *Node) markDirty()     { n.s.MarkDirty(n.addr) }

// indexForRouting returns the index of the entry whose key is the
// greatest <= target — the routing contract of spec §4.3. The sentinel
// min_key at index 0 guarantees this always exists for a non-empty node.
func (n *Node) indexForRouting(target []byte) int {
	count := n.Length()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.keyBytesAt(mid), target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// Find returns the routing child address for key k.
func (n *Node) Find(k kvcodec.Key) pagefmt.Address {
	idx := n.indexForRouting(k.Bytes())
	_, addr := n.entryAt(idx)
	return addr
}

// NeighbourResult is FindWithNeighbour's return value.
type NeighbourResult struct {
	MainIdx  int
	MainKey  kvcodec.Key
	MainAddr pagefmt.Address

	HasNeighbour  bool
	NeighbourIdx  int
	NeighbourKey  kvcodec.Key
	NeighbourAddr pagefmt.Address
	Order         Order
}

// FindWithNeighbour returns the routing entry for k and its designated
// sibling: the immediate right neighbour unless main is the node's last
// entry, in which case the immediate left neighbour. A single-entry node
// has no neighbour at all.
func (n *Node) FindWithNeighbour(k kvcodec.Key) NeighbourResult {
	idx := n.indexForRouting(k.Bytes())
	mainKey, mainAddr := n.entryAt(idx)
	res := NeighbourResult{MainIdx: idx, MainKey: mainKey, MainAddr: mainAddr}

	count := n.Length()
	if count <= 1 {
		return res
	}
	if idx < count-1 {
		nk, na := n.entryAt(idx + 1)
		res.HasNeighbour = true
		res.NeighbourIdx = idx + 1
		res.NeighbourKey = nk
		res.NeighbourAddr = na
		res.Order = Higher
	} else {
		nk, na := n.entryAt(idx - 1)
		res.HasNeighbour = true
		res.NeighbourIdx = idx - 1
		res.NeighbourKey = nk
		res.NeighbourAddr = na
		res.Order = Lower
	}
	return res
}

// Add inserts (k, addr) in sorted order.
func (n *Node) Add(k kvcodec.Key, addr pagefmt.Address) {
	count := n.Length()
	target := k.Bytes()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.keyBytesAt(mid), target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	for i := count; i > lo; i-- {
		copy(n.rawSlot(i), n.rawSlot(i-1))
	}
	n.writeEntry(lo, target, addr)
	n.setCount(count + 1)
	n.markDirty()
}

// Remove deletes the entry with exactly key k.
func (n *Node) Remove(k kvcodec.Key) {
	idx, ok := n.exactIndex(k)
	if !ok {
		return
	}
	count := n.Length()
	for i := idx; i < count-1; i++ {
		copy(n.rawSlot(i), n.rawSlot(i+1))
	}
	n.setCount(count - 1)
	n.markDirty()
}

// Replace renames the separator oldKey to newKey, keeping its address.
func (n *Node) Replace(oldKey, newKey kvcodec.Key) error {
	idx, ok := n.exactIndex(oldKey)
	if !ok {
		return errs.ProgrammerError("Replace: key %s not present in node %s", oldKey, n.addr)
	}
	_, addr := n.entryAt(idx)
	n.writeEntry(idx, newKey.Bytes(), addr)
	n.markDirty()
	return nil
}

func (n *Node) exactIndex(k kvcodec.Key) (int, bool) {
	count := n.Length()
	target := k.Bytes()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.keyBytesAt(mid), target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < count && bytes.Equal(n.keyBytesAt(lo), target) {
		return lo, true
	}
	return 0, false
}

// Iter invokes f on every (key,address) entry in order.
func (n *Node) Iter(f func(kvcodec.Key, pagefmt.Address) error) error {
	count := n.Length()
	for i := 0; i < count; i++ {
		k, a := n.entryAt(i)
		if err := f(k, a); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Overflow() bool  { return n.Length() > n.s.Params().Fanout }
func (n *Node) Underflow() bool { return n.Length() < n.s.Params().MinFanout() }

func (n *Node) Leftmost() kvcodec.Key {
	k, _ := n.entryAt(0)
	return k
}

// First returns the node's slot-0 entry — always the min_key sentinel and
// its child address; used by a root shrink (when a node decays to a
// single child, that child becomes the new root) to recover the
// surviving child's address.
func (n *Node) First() (kvcodec.Key, pagefmt.Address) {
	return n.entryAt(0)
}

// Split splits the node: self keeps the lower half, a freshly allocated
// node (same depth) gets the upper half. The promoted key (the separator
// the caller installs in the parent) is the new node's real leftmost key;
// the new node's own slot 0 is then overwritten with the sentinel min_key,
// keeping the invariant (spec §3/§8) that every non-leaf page's leftmost
// key is min_key uniformly, not just on the tree's leftmost spine.
func (n *Node) Split() (kvcodec.Key, *Node, error) {
	count := n.Length()
	mid := count / 2

	newNode, err := Create(n.s, n.codec, n.Depth())
	if err != nil {
		return nil, nil, err
	}
	for i := mid; i < count; i++ {
		k, a := n.entryAt(i)
		newNode.writeEntry(i-mid, k.Bytes(), a)
	}
	newNode.setCount(count - mid)
	promoted := newNode.Leftmost()
	_, firstAddr := newNode.entryAt(0)
	newNode.writeEntry(0, n.codec.MinKey().Bytes(), firstAddr)
	newNode.markDirty()

	n.setCount(mid)
	n.markDirty()

	return promoted, newNode, nil
}

// Merge attempts to absorb other's entries into self (self assumed left,
// other assumed right sibling). otherLeftmost is other's real leftmost
// key — the parent's separator for other — supplied by the caller because
// other's own slot 0 on disk holds the min_key sentinel, not its real
// leftmost key (spec §3/§8: every non-leaf page's leftmost key is
// min_key, so that information isn't recoverable from other's page once
// written). On Partial, the returned key is other's new real leftmost and
// must become the parent's new separator for other (Node.Replace); other's
// own slot 0 is immediately overwritten with the sentinel again to
// preserve the same invariant on the smaller page that results.
func (n *Node) Merge(other *Node, otherLeftmost kvcodec.Key) (MergeOutcome, kvcodec.Key, error) {
	ln, rn := n.Length(), other.Length()
	fanout := n.s.Params().Fanout
	minFanout := n.s.Params().MinFanout()

	type entry struct {
		key  []byte
		addr pagefmt.Address
	}
	otherEntryAt := func(i int) entry {
		k, a := other.entryAt(i)
		if i == 0 {
			return entry{otherLeftmost.Bytes(), a}
		}
		return entry{k.Bytes(), a}
	}

	if ln+rn <= fanout {
		for i := 0; i < rn; i++ {
			e := otherEntryAt(i)
			n.writeEntry(ln+i, e.key, e.addr)
		}
		n.setCount(ln + rn)
		n.markDirty()
		if err := n.s.Free(other.addr); err != nil {
			return Total, nil, err
		}
		return Total, nil, nil
	}

	total := ln + rn
	leftNew := total / 2
	if leftNew < minFanout {
		leftNew = minFanout
	}

	all := make([]entry, 0, total)
	for i := 0; i < ln; i++ {
		k, a := n.entryAt(i)
		all = append(all, entry{k.Bytes(), a})
	}
	for i := 0; i < rn; i++ {
		all = append(all, otherEntryAt(i))
	}

	for i := 0; i < leftNew; i++ {
		n.writeEntry(i, all[i].key, all[i].addr)
	}
	n.setCount(leftNew)
	n.markDirty()

	for i := leftNew; i < total; i++ {
		other.writeEntry(i-leftNew, all[i].key, all[i].addr)
	}
	other.setCount(total - leftNew)
	newRightLeftmost := other.codec.DecodeKey(all[leftNew].key)
	other.writeEntry(0, n.codec.MinKey().Bytes(), all[leftNew].addr)
	other.markDirty()

	return Partial, newRightLeftmost, nil
}

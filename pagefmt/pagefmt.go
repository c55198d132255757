// Package pagefmt is the "Field/Common" component of spec §2: the fixed
// binary encodings shared by every page, independent of whether the page
// is a Leaf or a Node. It plays the role the teacher's dbms/index/btpage
// package plays for the cell-pointer page format — but since this spec's
// Key and Value are both fixed-width (no variable-length cell area, no
// free-space compaction), the header this package defines is the simpler
// fixed-slot layout the teacher's own dbms/index/btree/btree.go uses
// in-line (offType/offNumKeys/offSlots), pulled out into its own package
// so Leaf and Node share one implementation of it.
package pagefmt

import (
	"encoding/binary"
	"strconv"

	"github.com/kvindex/btreekv/errs"
)

// Address is a zero-based page index into the Store's file.
type Address uint64

// InvalidAddress marks "no page" — an absent sibling, an absent freelist
// successor, an absent next-leaf pointer.
const InvalidAddress Address = ^Address(0)

func (a Address) String() string {
	if a == InvalidAddress {
		return "<invalid>"
	}
	return strconv.FormatUint(uint64(a), 10)
}

// Kind is a page's type tag: KindLeaf (depth 0) or a node depth >= 1.
type Kind uint16

// KindLeaf is the Kind of every leaf page.
const KindLeaf Kind = 0

// IsLeaf reports whether k is the leaf kind.
func (k Kind) IsLeaf() bool { return k == KindLeaf }

// Depth returns the node depth k encodes. 0 for leaves.
func (k Kind) Depth() int { return int(k) }

// NodeKind returns the Kind for an internal node of the given depth
// (depth >= 1).
func NodeKind(depth int) Kind { return Kind(depth) }

// ─── per-page header ───────────────────────────────────────────────────────
//
// [0-1]  uint16  Kind   (0 = leaf, n>=1 = node of depth n)
// [2-3]  uint16  Count  (number of packed entries in this page)
// [4...] packed (Key,Value) or (Key,Address) entries, Count of them.

const (
	offKind  = 0
	offCount = 2
	// HeaderSize is the fixed width of the per-page header every Leaf and
	// Node page carries before its packed entries.
	HeaderSize = 4
)

// ReadKind decodes the Kind tag from a raw page buffer.
func ReadKind(page []byte) (Kind, error) {
	if len(page) < HeaderSize {
		return 0, errs.CorruptPage("page shorter than header (%d bytes)", len(page))
	}
	return Kind(binary.LittleEndian.Uint16(page[offKind : offKind+2])), nil
}

// WriteKind stamps the Kind tag into a raw page buffer.
func WriteKind(page []byte, k Kind) {
	binary.LittleEndian.PutUint16(page[offKind:offKind+2], uint16(k))
}

// ReadCount decodes the entry count from a raw page buffer.
func ReadCount(page []byte) int {
	return int(binary.LittleEndian.Uint16(page[offCount : offCount+2]))
}

// WriteCount stamps the entry count into a raw page buffer.
func WriteCount(page []byte, n int) {
	binary.LittleEndian.PutUint16(page[offCount:offCount+2], uint16(n))
}

// SlotOffset returns the byte offset of packed entry i, given the fixed
// width of one entry (KeySize+ValueSize for a leaf, KeySize+AddressSize
// for a node).
func SlotOffset(i, slotSize int) int { return HeaderSize + i*slotSize }

// PutAddress encodes addr at buf[0:8].
func PutAddress(buf []byte, addr Address) {
	binary.LittleEndian.PutUint64(buf, uint64(addr))
}

// GetAddress decodes an Address from buf[0:8].
func GetAddress(buf []byte) Address {
	return Address(binary.LittleEndian.Uint64(buf))
}

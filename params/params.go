// Package params holds the compile-time-ish configuration a btree is built
// from: page size, key/value sizes, and the derived fanout. It plays the
// role the teacher's Open(path, cachePages) argument lists play — a plain
// constructor, no config file, no environment variables (spec §6
// Environment).
package params

import (
	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/pagefmt"
)

// Version is bumped whenever the on-disk header layout changes. A file
// written with a different version is fatal to open (spec §6 Versioning).
const Version uint32 = 1

// Params is the configuration a Store/Btree is built from. Every field is
// fixed for the lifetime of a given on-disk file; reopening a file with
// different KeySize/ValueSize/PageSize than it was created with is a
// CorruptPage-class error (the header records what it was created with,
// see store.Header).
type Params struct {
	PageSize  int // bytes per page, header included
	KeySize   int // fixed width of an encoded Key
	ValueSize int // fixed width of an encoded Value
	Fanout    int // max (Key,Value) or (Key,Address) entries per page
	Debug     bool
	Version   uint32
}

// AddressSize is the fixed on-disk width of a page Address (see
// pagefmt.Address) — a node's routing records are (Key, Address) pairs of
// width KeySize+AddressSize.
const AddressSize = 8

// Option configures a Params during New.
type Option func(*Params)

// WithDebug enables Params.Debug, which gates the extra log.Printf
// diagnostics the btree package emits.
func WithDebug(debug bool) Option {
	return func(p *Params) { p.Debug = debug }
}

// New derives a Params from the three sizes a caller actually cares about:
// the page size of the backing file and the fixed widths of the Key and
// Value types in use. Fanout is computed twice — once for a leaf page
// ((Key,Value) pairs) and once for a node page ((Key,Address) pairs) — and
// the smaller of the two is used, so a single Fanout constant is safe to
// apply uniformly to both page kinds (this mirrors the teacher's own
// comment in dbms/index/btree/btree.go explaining why it takes the min of
// the leaf and internal slot counts).
func New(pageSize, keySize, valueSize int, opts ...Option) (*Params, error) {
	if pageSize <= 0 || keySize <= 0 || valueSize <= 0 {
		return nil, errs.AssertionViolation("page_sz, key_sz and value_sz must all be positive (got %d, %d, %d)", pageSize, keySize, valueSize)
	}

	leafHeader := pagefmt.HeaderSize
	nodeHeader := pagefmt.HeaderSize

	leafSlot := keySize + valueSize
	nodeSlot := keySize + AddressSize

	leafFanout := (pageSize - leafHeader) / leafSlot
	nodeFanout := (pageSize - nodeHeader) / nodeSlot

	fanout := leafFanout
	if nodeFanout < fanout {
		fanout = nodeFanout
	}
	if fanout < 3 {
		return nil, errs.AssertionViolation("page_sz %d too small for key_sz %d / value_sz %d: fanout would be %d (need >= 3)", pageSize, keySize, valueSize, fanout)
	}

	p := &Params{
		PageSize:  pageSize,
		KeySize:   keySize,
		ValueSize: valueSize,
		Fanout:    fanout,
		Version:   Version,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// LeafSlotSize is the packed width of one (Key,Value) record.
func (p *Params) LeafSlotSize() int { return p.KeySize + p.ValueSize }

// NodeSlotSize is the packed width of one (Key,Address) record.
func (p *Params) NodeSlotSize() int { return p.KeySize + AddressSize }

// MinFanout is the underflow threshold: fewer entries than this (for a
// non-root page) triggers a merge. Spec §8 pins every non-root page to
// between ceil(fanout/2) and fanout entries inclusive, so this is a
// ceiling-divide, not a floor-divide: for odd fanout, floor division would
// let a page sit at ceil(fanout/2)-1 entries without ever triggering a
// merge.
func (p *Params) MinFanout() int { return (p.Fanout + 1) / 2 }

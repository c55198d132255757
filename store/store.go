// Package store is the paged-file abstraction spec §4.1 describes: a
// ref-counted page cache, a freelist, a persistent root pointer, and a
// bulk-load migration fast path, all backed by one file.
//
// It is grounded on the teacher's dbms/pager/pager.go (the LRU page cache
// and the read/write-through file access pattern) and on the header
// bookkeeping dbms/index/btree/btree.go and dbms/index/bptree/*.go do
// ad hoc with their own writeHeader/readHeader pairs — here pulled out
// into one component with a real freelist and a write-back cache instead
// of each tree variant re-deriving it.
package store

import (
	"os"
	"path/filepath"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/params"
)

// DefaultCacheCapacity is used by Init when a caller doesn't care to size
// the page cache explicitly.
const DefaultCacheCapacity = 256

const fileName = "b.tree"

// Store owns the backing file for one tree.
type Store struct {
	file   *os.File
	path   string
	params *params.Params
	cache  *pageCache
	header header

	// leased tracks addresses pinned since the last ReleaseRO/Release
	// call — the "current lease group" of spec §4.1.
	leased []pagefmt.Address

	headerDirty bool
	closed      bool

	mig *migration
}

// Init opens root_dir/b.tree, creating it (and root_dir) if absent. A
// freshly created file gets page 0 allocated as a leaf root and its
// header persisted immediately — everything after that goes through the
// normal write-back path.
func Init(rootDir string, p *params.Params, cacheCapacity int) (*Store, error) {
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, errs.IOError("mkdir "+rootDir, err)
	}
	path := filepath.Join(rootDir, fileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.IOError("open "+path, err)
	}

	s := &Store{
		file:   f,
		path:   path,
		params: p,
		cache:  newPageCache(cacheCapacity),
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errs.IOError("stat "+path, err)
	}

	if info.Size() == 0 {
		s.header = header{
			root:         0,
			freelistHead: pagefmt.InvalidAddress,
			pageCount:    0,
			keySize:      uint32(p.KeySize),
			valueSize:    uint32(p.ValueSize),
			pageSize:     uint32(p.PageSize),
			fanout:       uint32(p.Fanout),
			version:      params.Version,
		}
		rootAddr, err := s.Alloc(pagefmt.KindLeaf)
		if err != nil {
			return nil, err
		}
		s.header.root = rootAddr
		s.headerDirty = true
		if err := s.Flush(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.readHeaderFromDisk(); err != nil {
		return nil, err
	}
	if int(s.header.keySize) != p.KeySize || int(s.header.valueSize) != p.ValueSize || int(s.header.pageSize) != p.PageSize {
		return nil, errs.CorruptPage(
			"params mismatch: file has key_sz=%d value_sz=%d page_sz=%d, opened with key_sz=%d value_sz=%d page_sz=%d",
			s.header.keySize, s.header.valueSize, s.header.pageSize, p.KeySize, p.ValueSize, p.PageSize)
	}
	return s, nil
}

func (s *Store) headerOffset() int64 { return 0 }

func (s *Store) pageOffset(addr pagefmt.Address) int64 {
	return int64(s.params.PageSize) + int64(addr)*int64(s.params.PageSize)
}

func (s *Store) readHeaderFromDisk() error {
	buf := make([]byte, s.params.PageSize)
	if _, err := s.file.ReadAt(buf, s.headerOffset()); err != nil {
		return errs.IOError("read header", err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return err
	}
	s.header = h
	return nil
}

func (s *Store) writeHeaderToDisk() error {
	buf := make([]byte, s.params.PageSize)
	if err := s.header.encode(buf); err != nil {
		return err
	}
	if _, err := s.file.WriteAt(buf, s.headerOffset()); err != nil {
		return errs.IOError("write header", err)
	}
	s.headerDirty = false
	return nil
}

// Params returns the configuration the store was opened with.
func (s *Store) Params() *params.Params { return s.params }

// Root returns the current root page address.
func (s *Store) Root() pagefmt.Address { return s.header.root }

// Reroot replaces the root address. It is the only way the root changes
// (spec §4.1).
func (s *Store) Reroot(addr pagefmt.Address) {
	s.header.root = addr
	s.headerDirty = true
}

// PageCount returns the total number of pages ever allocated, including
// pages currently on the freelist.
func (s *Store) PageCount() int { return int(s.header.pageCount) }

// CacheResident returns the number of pages currently resident in the
// page cache.
func (s *Store) CacheResident() int { return len(s.cache.entries) }

// Load returns the raw bytes of page addr, reading from disk on a cache
// miss and serving from cache on a hit. The returned slice is a direct
// view into the cache entry: writes through it are visible to subsequent
// Loads without an explicit Write call. It acquires a lease; callers must
// balance it with ReleaseRO (read-only use) or Release (read-write use).
func (s *Store) Load(addr pagefmt.Address) ([]byte, error) {
	if s.closed {
		return nil, errs.ProgrammerError("Load called on a closed store")
	}
	if e := s.cache.get(addr); e != nil {
		e.refs++
		s.leased = append(s.leased, addr)
		return e.buf, nil
	}
	buf := make([]byte, s.params.PageSize)
	if _, err := s.file.ReadAt(buf, s.pageOffset(addr)); err != nil {
		return nil, errs.IOError("read page", err)
	}
	if _, err := pagefmt.ReadKind(buf); err != nil {
		return nil, err
	}
	e := s.cache.insert(addr, buf)
	e.refs = 1
	s.leased = append(s.leased, addr)
	return e.buf, nil
}

// MarkDirty flags addr's page as modified. Leaf/Node call this after
// mutating a page they hold under a write lease; the bytes are already
// mutated in place (Load returns a direct view), this only schedules the
// page for the next Flush/eviction write-back.
func (s *Store) MarkDirty(addr pagefmt.Address) {
	if e := s.cache.get(addr); e != nil {
		e.dirty = true
	}
}

// ReleaseRO ends the current read-only lease group (Find/Mem descents):
// every address Loaded since the last ReleaseRO/Release call is unpinned.
func (s *Store) ReleaseRO() { s.releaseLeases() }

// Release ends the current read-write lease group (Add/Remove). Dirty
// pages among the released leases are not necessarily written back yet —
// only Flush/Close/eviction guarantee that — but Release is always safe
// to call as soon as a caller is done mutating a batch of pages.
func (s *Store) Release() { s.releaseLeases() }

func (s *Store) releaseLeases() {
	for _, addr := range s.leased {
		if e := s.cache.get(addr); e != nil && e.refs > 0 {
			e.refs--
		}
	}
	s.leased = s.leased[:0]
	s.evictOverflow()
}

func (s *Store) evictOverflow() {
	for _, e := range s.cache.evictable() {
		if e.dirty {
			if err := s.writePageToDisk(e.addr, e.buf); err == nil {
				e.dirty = false
			} else {
				continue
			}
		}
		s.cache.drop(e)
	}
}

func (s *Store) writePageToDisk(addr pagefmt.Address, buf []byte) error {
	if _, err := s.file.WriteAt(buf, s.pageOffset(addr)); err != nil {
		return errs.IOError("write page", err)
	}
	return nil
}

// Alloc obtains a fresh page address, preferring the freelist over
// extending the file, zero-fills it, and stamps the Kind header. The
// caller is expected to Load the address afterwards to populate it.
func (s *Store) Alloc(kind pagefmt.Kind) (pagefmt.Address, error) {
	var addr pagefmt.Address
	if s.header.freelistHead != pagefmt.InvalidAddress {
		addr = s.header.freelistHead
		buf, err := s.readRawForFreelist(addr)
		if err != nil {
			return 0, err
		}
		s.header.freelistHead = pagefmt.GetAddress(buf)
		s.headerDirty = true
	} else {
		addr = pagefmt.Address(s.header.pageCount)
		s.header.pageCount++
		s.headerDirty = true
	}

	buf := make([]byte, s.params.PageSize)
	pagefmt.WriteKind(buf, kind)
	pagefmt.WriteCount(buf, 0)

	if e := s.cache.get(addr); e != nil {
		copy(e.buf, buf)
		e.dirty = true
	} else {
		e := s.cache.insert(addr, buf)
		e.dirty = true
	}
	if err := s.writePageToDisk(addr, buf); err != nil {
		return 0, err
	}
	return addr, nil
}

// readRawForFreelist reads a freelist page's successor pointer, from
// cache if resident (it may be, if the caller just freed it this
// session), else from disk.
func (s *Store) readRawForFreelist(addr pagefmt.Address) ([]byte, error) {
	if e := s.cache.get(addr); e != nil {
		return e.buf, nil
	}
	buf := make([]byte, s.params.PageSize)
	if _, err := s.file.ReadAt(buf, s.pageOffset(addr)); err != nil {
		return nil, errs.IOError("read freelist page", err)
	}
	return buf, nil
}

// Free pushes addr onto the freelist. The page's content is overwritten
// with the freelist successor pointer; any cached view of it is now
// invalid for tree use.
func (s *Store) Free(addr pagefmt.Address) error {
	buf := make([]byte, s.params.PageSize)
	pagefmt.PutAddress(buf, s.header.freelistHead)
	s.header.freelistHead = addr
	s.headerDirty = true

	if e := s.cache.get(addr); e != nil {
		copy(e.buf, buf)
		e.dirty = true
		e.refs = 0
	} else {
		e := s.cache.insert(addr, buf)
		e.dirty = true
	}
	return s.writePageToDisk(addr, buf)
}

// freelistSet walks the freelist chain and returns the set of addresses
// currently free, for Iter to skip.
func (s *Store) freelistSet() (map[pagefmt.Address]bool, error) {
	set := make(map[pagefmt.Address]bool)
	addr := s.header.freelistHead
	for addr != pagefmt.InvalidAddress {
		if set[addr] {
			return nil, errs.CorruptPage("cyclic freelist at address %s", addr)
		}
		set[addr] = true
		buf, err := s.readRawForFreelist(addr)
		if err != nil {
			return nil, err
		}
		addr = pagefmt.GetAddress(buf)
	}
	return set, nil
}

// Iter invokes f on every live page in address order, skipping freelist
// members.
func (s *Store) Iter(f func(addr pagefmt.Address, page []byte) error) error {
	free, err := s.freelistSet()
	if err != nil {
		return err
	}
	for i := uint64(0); i < s.header.pageCount; i++ {
		addr := pagefmt.Address(i)
		if free[addr] {
			continue
		}
		buf, err := s.Load(addr)
		if err != nil {
			return err
		}
		err = f(addr, buf)
		s.ReleaseRO()
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every dirty cache entry and the header to disk and syncs
// the file — the durability barrier of spec §4.1/§5: any Add/Remove that
// returned before Flush is guaranteed visible on disk after Flush
// returns.
func (s *Store) Flush() error {
	for _, e := range s.cache.all() {
		if e.dirty {
			if err := s.writePageToDisk(e.addr, e.buf); err != nil {
				return err
			}
			e.dirty = false
		}
	}
	if s.headerDirty {
		if err := s.writeHeaderToDisk(); err != nil {
			return err
		}
	}
	if err := s.file.Sync(); err != nil {
		return errs.IOError("fsync", err)
	}
	return nil
}

// Clear resets the store to a single empty leaf root and an empty
// freelist, truncating the backing file. A subsequent Flush persists the
// new header.
func (s *Store) Clear() error {
	s.cache = newPageCache(s.cache.capacity)
	s.leased = s.leased[:0]
	s.header.freelistHead = pagefmt.InvalidAddress
	s.header.pageCount = 0
	if err := s.file.Truncate(int64(s.params.PageSize)); err != nil {
		return errs.IOError("truncate", err)
	}
	rootAddr, err := s.Alloc(pagefmt.KindLeaf)
	if err != nil {
		return err
	}
	s.header.root = rootAddr
	s.headerDirty = true
	return nil
}

// Close flushes and releases the file handle.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if err := s.Flush(); err != nil {
		return err
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return errs.IOError("close", err)
	}
	return nil
}

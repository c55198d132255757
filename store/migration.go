package store

import (
	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/pagefmt"
)

// migration tracks the Private bulk-load fast path of spec §4.1/§4.6:
// pages are appended sequentially, bypassing the page cache entirely,
// and the whole batch commits atomically with one header rewrite.
type migration struct {
	next pagefmt.Address
}

// InitMigration begins a bulk-load append. It is only valid on a store
// with no other in-flight migration; callers typically Clear() the store
// first so the migration starts from an empty file, but InitMigration
// itself just starts appending after whatever pages already exist.
func (s *Store) InitMigration() error {
	if s.mig != nil {
		return errs.ProgrammerError("InitMigration called while a migration is already in progress")
	}
	s.mig = &migration{next: pagefmt.Address(s.header.pageCount)}
	return nil
}

// Write appends one full page-sized buffer sequentially and returns the
// address it was assigned. buf must be exactly Params.PageSize bytes
// (spec §4.6: "the remainder is zero-padded" by the caller before
// calling Write).
func (s *Store) Write(buf []byte) (pagefmt.Address, error) {
	if s.mig == nil {
		return 0, errs.ProgrammerError("Write called outside a migration")
	}
	if len(buf) != s.params.PageSize {
		return 0, errs.AssertionViolation("migration write: buffer is %d bytes, page_sz is %d", len(buf), s.params.PageSize)
	}
	addr := s.mig.next
	if err := s.writePageToDisk(addr, buf); err != nil {
		return 0, err
	}
	s.mig.next++
	return addr, nil
}

// MigrationNext returns the address the next Write within the current
// migration would be assigned — equivalently, the page count a caller
// should pass to EndMigration once it has no more pages to append.
func (s *Store) MigrationNext() pagefmt.Address {
	if s.mig == nil {
		return 0
	}
	return s.mig.next
}

// ResetForBulkLoad discards whatever pages the store currently holds and
// begins a fresh migration at address 0 — the entry point spec §4.6's
// bulk-load path uses instead of opening an existing file incrementally.
func (s *Store) ResetForBulkLoad() error {
	s.cache = newPageCache(s.cache.capacity)
	s.leased = s.leased[:0]
	if err := s.file.Truncate(int64(s.params.PageSize)); err != nil {
		return errs.IOError("truncate", err)
	}
	s.header.pageCount = 0
	s.header.freelistHead = pagefmt.InvalidAddress
	s.headerDirty = true
	return s.InitMigration()
}

// EndMigration commits the migration: the new page count and root become
// the store's, in a single header rewrite, and the store is flushed so
// the commit is durable before EndMigration returns.
func (s *Store) EndMigration(newNextAddr, newRoot pagefmt.Address) error {
	if s.mig == nil {
		return errs.ProgrammerError("EndMigration called outside a migration")
	}
	s.header.pageCount = uint64(newNextAddr)
	s.header.root = newRoot
	s.header.freelistHead = pagefmt.InvalidAddress
	s.headerDirty = true
	s.mig = nil
	return s.Flush()
}

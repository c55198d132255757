// Package frompebble adapts an existing Pebble keyspace into a
// bulkload.Source, so a tree can be bulk-loaded from data that already
// lives in an LSM store instead of from an in-memory slice. Grounded
// directly on the teacher's dbms/index/lsm/lsm.go, which opens and
// iterates a *pebble.DB the same way (pebble.Open, then
// db.NewIter(nil), Next()/Valid()/Key()/Value()) — this package is that
// same read path, repointed at feeding a migration instead of serving
// point lookups.
package frompebble

import (
	"github.com/cockroachdb/pebble"

	"github.com/kvindex/btreekv/errs"
)

// Source reads sorted (key,value) pairs out of a Pebble database via one
// forward iterator. It does not copy the database or take a snapshot —
// callers that need a consistent point-in-time view should open their
// own pebble.Snapshot and pass its NewIter to NewFromIterator instead.
type Source struct {
	it    *pebble.Iterator
	first bool
}

// Open opens the Pebble database at path read-only and returns a Source
// over its entire keyspace in ascending key order.
func Open(path string) (*Source, func() error, error) {
	opts := &pebble.Options{ReadOnly: true}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, nil, errs.IOError("open pebble db "+path, err)
	}
	it, err := db.NewIter(nil)
	if err != nil {
		db.Close()
		return nil, nil, errs.IOError("new pebble iterator", err)
	}
	closeFn := func() error {
		it.Close()
		return db.Close()
	}
	return &Source{it: it, first: true}, closeFn, nil
}

// NewFromIterator wraps an already-open, positioned-at-start iterator —
// e.g. one taken from a pebble.Snapshot or pebble.Batch — as a Source.
// The caller owns the iterator's lifetime.
func NewFromIterator(it *pebble.Iterator) *Source {
	return &Source{it: it, first: true}
}

func (s *Source) Next() ([]byte, []byte, bool, error) {
	var ok bool
	if s.first {
		ok = s.it.First()
		s.first = false
	} else {
		ok = s.it.Next()
	}
	if !ok {
		if err := s.it.Error(); err != nil {
			return nil, nil, false, errs.IOError("pebble iteration", err)
		}
		return nil, nil, false, nil
	}
	key := append([]byte(nil), s.it.Key()...)
	val := append([]byte(nil), s.it.Value()...)
	return key, val, true, nil
}

// Package errs defines the fatal and recoverable error kinds shared by the
// store, leaf, node and btree packages.
//
// Only NotFound is meant to be handled by callers; everything else is
// fatal and should be treated as poisoning the tree that produced it (see
// spec §7 / §9 of the design notes this package is built against).
package errs

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Find/Leaf.find when a key is absent. It is the
// one recoverable error kind: callers are expected to check for it with
// errors.Is.
var ErrNotFound = errors.New("btreekv: key not found")

// Sentinel markers for the fatal kinds. They exist so a caller can tell
// "this page is corrupt" apart from "the disk returned EIO" apart from "the
// implementation's own invariant broke" without string-matching messages.
var (
	corruptPageMark = errors.New("corrupt page")
	ioMark          = errors.New("i/o error")
	assertionMark   = errors.New("assertion violation")
	programmerMark  = errors.New("programmer error")
)

// CorruptPage builds a fatal corrupt-page error: a bad Kind byte, a
// bad magic/version in the header, or a page whose declared size disagrees
// with Params.
func CorruptPage(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("btreekv: corrupt page: "+format, args...), corruptPageMark)
}

// IOError wraps an underlying I/O failure (a short read/write, an os.File
// error) as fatal.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "btreekv: i/o error: %s", op), ioMark)
}

// AssertionViolation marks a broken invariant: a packed page exceeding
// page_sz, a merge attempted without a neighbour, a Kind mismatch between
// siblings that depth-uniformity is supposed to rule out.
func AssertionViolation(format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedf("btreekv: "+format, args...), assertionMark)
}

// ProgrammerError marks misuse of the API itself: reusing a closed Store,
// calling Private migration methods outside a migration, closing a tree
// the instance cache does not track.
func ProgrammerError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("btreekv: programmer error: "+format, args...), programmerMark)
}

// IsCorruptPage reports whether err is (or wraps) a CorruptPage error.
func IsCorruptPage(err error) bool { return errors.Is(err, corruptPageMark) }

// IsIOError reports whether err is (or wraps) an IOError.
func IsIOError(err error) bool { return errors.Is(err, ioMark) }

// IsAssertionViolation reports whether err is (or wraps) an AssertionViolation.
func IsAssertionViolation(err error) bool { return errors.Is(err, assertionMark) }

// IsProgrammerError reports whether err is (or wraps) a ProgrammerError.
func IsProgrammerError(err error) bool { return errors.Is(err, programmerMark) }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Fatal reports whether err is any of the non-recoverable kinds above.
// NotFound is deliberately excluded: it is the one kind callers are
// expected to recover from (spec §7 propagation policy).
func Fatal(err error) bool {
	return err != nil && !IsNotFound(err)
}

package store

import (
	"encoding/binary"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/params"
)

// magic identifies a btreekv file. Checked on every reopen (spec §6 Kind
// encoding / Versioning).
var magic = [4]byte{'b', 'T', 'r', 'K'}

// header is the reserved header block every file starts with (spec §6:
// "A reserved header page ... stores: magic, version, root_address,
// freelist head, and page count."). It occupies exactly one page-sized
// region at file offset 0, ahead of the addressable data pages.
type header struct {
	root         pagefmt.Address
	freelistHead pagefmt.Address
	pageCount    uint64
	keySize      uint32
	valueSize    uint32
	pageSize     uint32
	fanout       uint32
	version      uint32
}

const headerPayloadSize = 4 + 4 + // magic + version
	8 + 8 + 8 + // root + freelistHead + pageCount
	4 + 4 + 4 + 4 // keySize + valueSize + pageSize + fanout

func (h *header) encode(buf []byte) error {
	if len(buf) < headerPayloadSize {
		return errs.AssertionViolation("header buffer too small: %d < %d", len(buf), headerPayloadSize)
	}
	off := 0
	copy(buf[off:off+4], magic[:])
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.version)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(h.root))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(h.freelistHead))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.pageCount)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.keySize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.valueSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.pageSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.fanout)
	return nil
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerPayloadSize {
		return h, errs.CorruptPage("header truncated: %d bytes", len(buf))
	}
	off := 0
	if string(buf[off:off+4]) != string(magic[:]) {
		return h, errs.CorruptPage("bad magic %q", buf[off:off+4])
	}
	off += 4
	h.version = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if h.version != params.Version {
		return h, errs.CorruptPage("version mismatch: file is v%d, this build is v%d", h.version, params.Version)
	}
	h.root = pagefmt.Address(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	h.freelistHead = pagefmt.Address(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	h.pageCount = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.keySize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.valueSize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.pageSize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.fanout = binary.LittleEndian.Uint32(buf[off:])
	return h, nil
}

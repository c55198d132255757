// Package kvcodec defines the Key and Value capability sets the core
// assumes and are treated as external collaborators per spec §1: a fixed
// byte width, a total order, and a debug representation. It also ships the
// concrete codecs this repo's tests and cmd/btreekv-bench exercise it
// with.
//
// The encoding convention — order-preserving fixed-width bytes, compared
// with bytes.Compare — is lifted straight from the teacher's
// dbms/index/lsm/lsm.go encodeKey/encodeKeyExclusive helpers, which
// big-endian-encode an int64 specifically so lexicographic byte order
// matches numeric order. Key.Bytes here plays the same role; Int64Key adds
// the sign-bit flip big-endian alone doesn't give you for negative values.
package kvcodec

import (
	"encoding/binary"
	"fmt"
)

// Key is a fixed-width, order-preserving encodable key. Two keys compare
// equal/less/greater exactly as bytes.Compare orders their Bytes().
// MinKey (see Codec.MinKey) is the sentinel every Node's leftmost entry
// carries (spec §3/§4.3).
type Key interface {
	// Bytes returns the canonical fixed-width encoding. The returned slice
	// must always have the same length for a given Codec and must not be
	// retained by the caller past the next call (implementations may reuse
	// a buffer), callers that need to keep it must copy.
	Bytes() []byte
	// String renders a debug form (spec's "debug-dump").
	String() string
}

// Value is a fixed-width encodable value.
type Value interface {
	Bytes() []byte
	String() string
}

// Codec knows how to decode the fixed-width Key/Value encodings it
// produces, and what the sentinel minimum key is. Leaf/Node/Store are
// written against this interface rather than Go generics over Key/Value
// directly, so a single compiled package can serve any fixed-width
// key/value pair a caller defines — the "runtime vtable" alternative the
// design notes call out as equivalent to compile-time functor
// parametricity (spec §9).
type Codec interface {
	KeySize() int
	ValueSize() int
	DecodeKey(buf []byte) Key
	DecodeValue(buf []byte) Value
	// MinKey returns the sentinel minimum of the key space, used as the
	// leftmost entry of every Node page.
	MinKey() Key
}

// ─── int64 keys ───────────────────────────────────────────────────────────

// Int64Key is a total-order, fixed-width (8-byte) signed integer key.
// Encoding flips the sign bit of the big-endian representation so that
// bytes.Compare order matches numeric order across negative and
// non-negative values alike (the standard trick used by boltdb/lmdb-style
// stores; the teacher's own lsm.go encodeKey only handles the unsigned
// case, since its benchmark keys are always non-negative — this codec
// generalizes it).
type Int64Key int64

func (k Int64Key) Bytes() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(k)^signBit)
	return buf
}

func (k Int64Key) String() string { return fmt.Sprintf("%d", int64(k)) }

const signBit = uint64(1) << 63

func decodeInt64Key(buf []byte) Int64Key {
	return Int64Key(int64(binary.BigEndian.Uint64(buf) ^ signBit))
}

// ─── fixed-width byte-slice values ─────────────────────────────────────────

// FixedBytes is a Value whose width is fixed by the Codec that produced
// it; shorter inputs are zero-padded, longer inputs are rejected by
// Int64FixedBytesCodec.EncodeValue, not silently truncated.
type FixedBytes []byte

func (v FixedBytes) Bytes() []byte  { return []byte(v) }
func (v FixedBytes) String() string { return fmt.Sprintf("%q", []byte(v)) }

// Int64FixedBytesCodec pairs Int64Key keys with fixed-width byte-slice
// values — the pairing cmd/btreekv-bench and most tests in this repo use.
type Int64FixedBytesCodec struct {
	valueSize int
}

// NewInt64FixedBytesCodec builds a Codec over Int64Key keys and
// valueSize-wide FixedBytes values.
func NewInt64FixedBytesCodec(valueSize int) *Int64FixedBytesCodec {
	return &Int64FixedBytesCodec{valueSize: valueSize}
}

func (c *Int64FixedBytesCodec) KeySize() int   { return 8 }
func (c *Int64FixedBytesCodec) ValueSize() int { return c.valueSize }

func (c *Int64FixedBytesCodec) DecodeKey(buf []byte) Key {
	return decodeInt64Key(buf)
}

func (c *Int64FixedBytesCodec) DecodeValue(buf []byte) Value {
	out := make(FixedBytes, c.valueSize)
	copy(out, buf)
	return out
}

func (c *Int64FixedBytesCodec) MinKey() Key {
	return decodeInt64Key(make([]byte, 8))
}

// EncodeValue pads or validates v into the codec's fixed width. It is a
// convenience for callers building a Value from a plain []byte, mirroring
// how leaf/node accept already-fixed-width Key/Value pairs.
func (c *Int64FixedBytesCodec) EncodeValue(v []byte) (FixedBytes, error) {
	if len(v) > c.valueSize {
		return nil, fmt.Errorf("kvcodec: value of length %d exceeds fixed width %d", len(v), c.valueSize)
	}
	out := make(FixedBytes, c.valueSize)
	copy(out, v)
	return out, nil
}

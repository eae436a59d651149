// Package keytype bundles the width, comparison, and (de)serialization of a
// search key into a small capability set, so the B+-tree core stays generic
// over the on-disk representation of a key instead of hard-coding one.
//
// Keys are fixed width: the index picks a KeyType at create time and every
// key stored afterward is serialized at that width. There is no length
// prefix inside the page (see spec.md Non-goals).
package keytype

import (
	"encoding/binary"
	"fmt"
)

// Kind tags which KeyType a header page's descriptor encodes.
type Kind uint8

const (
	KindInt64 Kind = iota + 1
	KindFixedString
)

// DescriptorSize is the fixed number of bytes every serialized descriptor
// occupies on the header page, regardless of kind: 1 byte kind tag + 4 bytes
// of kind-specific parameter (string width, unused for ints).
const DescriptorSize = 5

// KeyType is the capability set the B+-tree core needs to treat a key as an
// opaque, totally ordered, fixed-width value.
type KeyType interface {
	// Kind identifies this key type for descriptor (de)serialization.
	Kind() Kind
	// Width returns the fixed serialized width of a key, in bytes.
	Width() int
	// Read deserializes a key from buf[off:off+Width()].
	Read(buf []byte, off int) Key
	// Write serializes k into buf[off:off+Width()].
	Write(buf []byte, off int, k Key)
	// Compare returns <0, 0, >0 as a < b, a == b, a > b.
	Compare(a, b Key) int
	// WriteDescriptor persists this KeyType's descriptor into
	// buf[off:off+DescriptorSize], for storage on the header page.
	WriteDescriptor(buf []byte, off int)
}

// Key is an opaque, comparable search key value. Concrete KeyType
// implementations agree among themselves on the dynamic type stored here
// (int64 for Int64Key, []byte for FixedStringKey); callers never need to
// know which.
type Key any

// ReadDescriptor deserializes a KeyType descriptor previously written by
// WriteDescriptor, reconstructing the matching KeyType implementation.
func ReadDescriptor(buf []byte, off int) (KeyType, error) {
	kind := Kind(buf[off])
	switch kind {
	case KindInt64:
		return Int64Key{}, nil
	case KindFixedString:
		width := int(binary.BigEndian.Uint32(buf[off+1 : off+5]))
		return FixedStringKey{N: width}, nil
	default:
		return nil, fmt.Errorf("keytype: unknown descriptor kind %d", kind)
	}
}

// Int64Key is a fixed 8-byte big-endian signed integer key type.
type Int64Key struct{}

func (Int64Key) Kind() Kind  { return KindInt64 }
func (Int64Key) Width() int  { return 8 }

func (Int64Key) Read(buf []byte, off int) Key {
	return int64(binary.BigEndian.Uint64(buf[off : off+8]))
}

func (Int64Key) Write(buf []byte, off int, k Key) {
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(k.(int64)))
}

func (Int64Key) Compare(a, b Key) int {
	av, bv := a.(int64), b.(int64)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func (Int64Key) WriteDescriptor(buf []byte, off int) {
	buf[off] = byte(KindInt64)
	binary.BigEndian.PutUint32(buf[off+1:off+5], 0)
}

// FixedStringKey is a fixed N-byte key type. Shorter values are zero-padded
// on write; comparison and read both operate over the full N bytes.
type FixedStringKey struct {
	N int
}

func (k FixedStringKey) Kind() Kind { return KindFixedString }
func (k FixedStringKey) Width() int { return k.N }

func (k FixedStringKey) Read(buf []byte, off int) Key {
	out := make([]byte, k.N)
	copy(out, buf[off:off+k.N])
	return out
}

func (k FixedStringKey) Write(buf []byte, off int, key Key) {
	b := key.([]byte)
	n := copy(buf[off:off+k.N], b)
	for i := off + n; i < off+k.N; i++ {
		buf[i] = 0
	}
}

func (k FixedStringKey) Compare(a, b Key) int {
	av, bv := a.([]byte), b.([]byte)
	for i := 0; i < k.N; i++ {
		switch {
		case av[i] < bv[i]:
			return -1
		case av[i] > bv[i]:
			return 1
		}
	}
	return 0
}

func (k FixedStringKey) WriteDescriptor(buf []byte, off int) {
	buf[off] = byte(KindFixedString)
	binary.BigEndian.PutUint32(buf[off+1:off+5], uint32(k.N))
}

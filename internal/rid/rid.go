// Package rid defines the record identifier the B+-tree core stores as a
// leaf value. An RID is opaque to the core: it is produced and interpreted
// by the heap-file collaborator (out of scope here; see spec.md Purpose &
// Scope) and is only ever carried, compared for equality, and serialized by
// the index.
package rid

import (
	"encoding/binary"

	"teachdb/internal/disk"
)

// Width is the fixed on-disk size of a serialized RID: a 4-byte page id
// plus a 2-byte slot number.
const Width = 6

// RID is a (page, slot) pointer into a heap page.
type RID struct {
	PageID disk.PageID
	SlotID uint16
}

// Read deserializes an RID from buf[off:off+Width].
func Read(buf []byte, off int) RID {
	return RID{
		PageID: disk.PageID(binary.BigEndian.Uint32(buf[off : off+4])),
		SlotID: binary.BigEndian.Uint16(buf[off+4 : off+6]),
	}
}

// Write serializes r into buf[off:off+Width].
func Write(buf []byte, off int, r RID) {
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(r.PageID))
	binary.BigEndian.PutUint16(buf[off+4:off+6], r.SlotID)
}

// Package bptree is the core of teachdb: an on-disk, buffer-pool-backed
// B+-tree index mapping fixed-width search keys to record ids.
//
// The package is organized leaves-first, mirroring spec.md §2:
//
//	layout.go      page codec: occupancy bounds, meta word, byte helpers
//	node.go        branch/leaf node operations and page encode/decode
//	find.go        binary search within a decoded node
//	header.go      header page codec (root id, size, key-type descriptor)
//	tree.go        top-down recursive search/insert/delete
//	rotate.go      shared redistribution/rotation helpers
//	btree.go       index façade: create/open/drop/close, lookup/insert/remove
//	iterator.go    range and equality scans
//	invariants.go  structural invariant checker
//	errors.go      sentinel errors (spec.md §7)
package bptree

import (
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

// Layout bundles the sizes the page codec and node operations need to
// interpret a page for one open index: the page size and the key type's
// fixed width. It is pure and holds no page data, buffer, or disk
// reference, per spec.md §4.1 ("no I/O, no allocation").
type Layout struct {
	PageSize int
	KeyType  keytype.KeyType

	keyWidth  int
	leafEntry int // key + rid
	branchEnt int // key + child pointer

	LMax int
	LMin int
	BMax int
	BMin int
}

// NewLayout derives occupancy bounds from pageSize and the key type, per
// spec.md §3 "Occupancy bounds".
func NewLayout(pageSize int, kt keytype.KeyType) Layout {
	l := Layout{PageSize: pageSize, KeyType: kt}
	l.keyWidth = kt.Width()
	l.leafEntry = l.keyWidth + rid.Width
	l.branchEnt = l.keyWidth + disk.Width

	// 2*LMax*(Wkey+Wrid) + 2*Wpid + 4 <= P
	l.LMax = (pageSize - 2*disk.Width - 4) / (2 * l.leafEntry)
	l.LMin = l.LMax / 2

	// BMax*(Wkey+Wpid) + Wpid + 4 <= P  (one leading child pointer)
	l.BMax = (pageSize - disk.Width - 4) / l.branchEnt
	l.BMin = l.BMax / 2
	return l
}

// metaOffset is the start of the 4-byte meta word, always the last 4 bytes
// of a tree page.
func (l Layout) metaOffset() int { return l.PageSize - 4 }

const leafTagBit = uint32(1) << 31

// IsLeaf reports the leaf/branch tag from a tree page's meta word without
// decoding the rest of the page.
func (l Layout) IsLeaf(buf []byte) bool {
	return beUint32(buf[l.metaOffset():]) & leafTagBit != 0
}

// NumKeys reads the key count from a tree page's meta word without
// decoding the rest of the page.
func (l Layout) NumKeys(buf []byte) int {
	return int(beUint32(buf[l.metaOffset():]) &^ leafTagBit)
}

// SetMeta stores the leaf/branch tag and key count atomically within the
// page buffer (spec.md §4.1).
func (l Layout) SetMeta(buf []byte, leaf bool, k int) {
	v := uint32(k)
	if leaf {
		v |= leafTagBit
	}
	putBEUint32(buf[l.metaOffset():], v)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBEUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putBEUint32AsPageID(b []byte, id disk.PageID) { putBEUint32(b, uint32(id)) }
func getPageID(b []byte) disk.PageID               { return disk.PageID(beUint32(b)) }

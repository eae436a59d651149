package bptree

import (
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

// LeafNode is the decoded form of a leaf page: entries are (key, rid)
// pairs in ascending key order, plus the doubly-linked-list pointers to
// the previous and next leaf (spec.md §3 "Leaf page").
type LeafNode struct {
	Keys []keytype.Key
	Rids []rid.RID
	Prev disk.PageID
	Next disk.PageID
}

// Size returns the number of entries (k in spec.md terms).
func (n *LeafNode) Size() int { return len(n.Keys) }

// GetKey returns the key at position i. Callers guarantee 0 <= i < k
// (spec.md §4.1).
func (n *LeafNode) GetKey(i int) keytype.Key { return n.Keys[i] }

// GetRid returns the record id at position i.
func (n *LeafNode) GetRid(i int) rid.RID { return n.Rids[i] }

// SetRid overwrites the record id at position i in place (used when an
// insert finds the key already present; spec.md §4.6 step 1).
func (n *LeafNode) SetRid(i int, r rid.RID) { n.Rids[i] = r }

// InsertEntry inserts (k, r) at position pos, shifting entries
// [pos..k-1] up by one (spec.md §4.3).
func (n *LeafNode) InsertEntry(pos int, k keytype.Key, r rid.RID) {
	n.Keys = append(n.Keys, nil)
	copy(n.Keys[pos+1:], n.Keys[pos:len(n.Keys)-1])
	n.Keys[pos] = k

	n.Rids = append(n.Rids, rid.RID{})
	copy(n.Rids[pos+1:], n.Rids[pos:len(n.Rids)-1])
	n.Rids[pos] = r
}

// DeleteEntry removes the entry at position pos, shifting
// [pos+1..k-1] down by one.
func (n *LeafNode) DeleteEntry(pos int) {
	n.Keys = append(n.Keys[:pos], n.Keys[pos+1:]...)
	n.Rids = append(n.Rids[:pos], n.Rids[pos+1:]...)
}

// BranchNode is the decoded form of a branch (non-leaf) page: k keys and
// k+1 child pointers, where subtree Children[i]'s keys are strictly less
// than Keys[i] (for i<k) and >= Keys[i-1] (for i>0) (spec.md §3 "Branch
// page").
type BranchNode struct {
	Keys     []keytype.Key
	Children []disk.PageID
}

// Size returns the number of keys (k in spec.md terms).
func (n *BranchNode) Size() int { return len(n.Keys) }

func (n *BranchNode) GetKey(i int) keytype.Key    { return n.Keys[i] }
func (n *BranchNode) SetKey(i int, k keytype.Key) { n.Keys[i] = k }
func (n *BranchNode) GetChild(i int) disk.PageID  { return n.Children[i] }

// InsertEntry inserts key K at position pos and child C at position pos+1,
// per spec.md §4.2: "shift K[pos..k-1] right ... shift C[pos+1..k] left
// ... write K[pos]<-K and C[pos+1]<-C".
func (n *BranchNode) InsertEntry(pos int, k keytype.Key, c disk.PageID) {
	n.Keys = append(n.Keys, nil)
	copy(n.Keys[pos+1:], n.Keys[pos:len(n.Keys)-1])
	n.Keys[pos] = k

	n.Children = append(n.Children, disk.InvalidPageID)
	copy(n.Children[pos+2:], n.Children[pos+1:len(n.Children)-1])
	n.Children[pos+1] = c
}

// DeleteEntry removes key at position pos and the child at pos+1 (the
// child that pos's key separates from its left neighbor), per spec.md
// §4.2.
func (n *BranchNode) DeleteEntry(pos int) {
	n.Keys = append(n.Keys[:pos], n.Keys[pos+1:]...)
	n.Children = append(n.Children[:pos+1], n.Children[pos+2:]...)
}

// DecodeLeaf reads a leaf page's entries and sibling pointers out of buf.
func (l Layout) DecodeLeaf(buf []byte) LeafNode {
	k := l.NumKeys(buf)
	n := LeafNode{
		Keys: make([]keytype.Key, k),
		Rids: make([]rid.RID, k),
	}
	for i := 0; i < k; i++ {
		off := i * l.leafEntry
		n.Keys[i] = l.KeyType.Read(buf, off)
		n.Rids[i] = rid.Read(buf, off+l.keyWidth)
	}
	n.Prev = getPageID(buf[l.leafPrevOffset():])
	n.Next = getPageID(buf[l.leafNextOffset():])
	return n
}

// EncodeLeaf writes a leaf node's entries, sibling pointers, and meta word
// into buf.
func (l Layout) EncodeLeaf(buf []byte, n LeafNode) {
	for i := range n.Keys {
		off := i * l.leafEntry
		l.KeyType.Write(buf, off, n.Keys[i])
		rid.Write(buf, off+l.keyWidth, n.Rids[i])
	}
	putBEUint32AsPageID(buf[l.leafPrevOffset():], n.Prev)
	putBEUint32AsPageID(buf[l.leafNextOffset():], n.Next)
	l.SetMeta(buf, true, len(n.Keys))
}

func (l Layout) leafPrevOffset() int { return l.PageSize - 4 - 2*disk.Width }
func (l Layout) leafNextOffset() int { return l.PageSize - 4 - disk.Width }

// DecodeBranch reads a branch page's keys and child pointers out of buf.
func (l Layout) DecodeBranch(buf []byte) BranchNode {
	k := l.NumKeys(buf)
	n := BranchNode{
		Keys:     make([]keytype.Key, k),
		Children: make([]disk.PageID, k+1),
	}
	for i := 0; i < k; i++ {
		n.Keys[i] = l.KeyType.Read(buf, i*l.keyWidth)
	}
	for i := 0; i <= k; i++ {
		n.Children[i] = getPageID(buf[l.branchChildOffset(i):])
	}
	return n
}

// EncodeBranch writes a branch node's keys, child pointers, and meta word
// into buf.
func (l Layout) EncodeBranch(buf []byte, n BranchNode) {
	for i, k := range n.Keys {
		l.KeyType.Write(buf, i*l.keyWidth, k)
	}
	for i, c := range n.Children {
		putBEUint32AsPageID(buf[l.branchChildOffset(i):], c)
	}
	l.SetMeta(buf, false, len(n.Keys))
}

// branchChildOffset is childOff(i) = P - 4 - (i+1)*Wpid (spec.md §4.2):
// child pointers grow from just before the meta word backward toward the
// center, so position 0 sits at the highest offset.
func (l Layout) branchChildOffset(i int) int {
	return l.PageSize - 4 - (i+1)*disk.Width
}

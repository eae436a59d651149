package bptree

import (
	"teachdb/internal/buffer"
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

type scanMode int

const (
	scanAll scanMode = iota
	scanFrom
	scanEqual
)

// Iterator walks entries in ascending key order across the leaf chain
// (spec.md §4.9 "Range and equality scans"). The leaf page currently
// being read stays pinned between calls; Close must be called once the
// caller is done, on every path including an early break.
type Iterator struct {
	idx  *Index
	mode scanMode
	key  keytype.Key

	frame *buffer.Frame
	node  LeafNode
	pos   int
	done  bool
}

// Scan returns an iterator over every entry, in ascending key order.
func (idx *Index) Scan() (*Iterator, error) {
	return idx.newIterator(scanAll, nil)
}

// ScanFrom returns an iterator over every entry with key >= from.
func (idx *Index) ScanFrom(from keytype.Key) (*Iterator, error) {
	return idx.newIterator(scanFrom, from)
}

// ScanEqual returns an iterator over every entry equal to key (at most
// one, since keys are unique, but shaped like the other scans for
// symmetry).
func (idx *Index) ScanEqual(key keytype.Key) (*Iterator, error) {
	return idx.newIterator(scanEqual, key)
}

func (idx *Index) newIterator(mode scanMode, key keytype.Key) (*Iterator, error) {
	it := &Iterator{idx: idx, mode: mode, key: key}
	if err := it.position(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) position() error {
	var leafID disk.PageID
	var err error
	if it.mode == scanAll {
		leafID, err = it.idx.leftmostLeaf(it.idx.root)
	} else {
		leafID, err = it.idx.descendToLeaf(it.idx.root, it.key)
	}
	if err != nil {
		return err
	}

	frame, node, err := it.idx.fetchLeaf(leafID)
	if err != nil {
		return err
	}
	it.frame = frame
	it.node = node
	it.done = false

	if it.mode == scanAll {
		it.pos = 0
		return nil
	}
	r := find(it.idx.layout.KeyType, node.Keys, it.key)
	if r >= 0 {
		it.pos = r
	} else {
		it.pos = -(r + 1)
	}
	return nil
}

// HasNext reports whether another entry is available, advancing across
// leaf boundaries (and exhausting the scan on an equality mismatch) as
// needed.
func (it *Iterator) HasNext() (bool, error) {
	if it.done {
		return false, nil
	}
	for {
		if it.pos < it.node.Size() {
			if it.mode == scanEqual && it.idx.layout.KeyType.Compare(it.node.GetKey(it.pos), it.key) != 0 {
				it.done = true
				return false, nil
			}
			return true, nil
		}
		next := it.node.Next
		if next == disk.InvalidPageID {
			it.done = true
			return false, nil
		}
		if err := it.idx.bpm.UnpinPage(it.frame, false); err != nil {
			return false, err
		}
		frame, node, err := it.idx.fetchLeaf(next)
		if err != nil {
			return false, err
		}
		it.frame = frame
		it.node = node
		it.pos = 0
	}
}

// Next returns the current entry and advances past it. When the scan is
// exhausted it returns ErrNotFound.
func (it *Iterator) Next() (keytype.Key, rid.RID, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, rid.RID{}, err
	}
	if !ok {
		return nil, rid.RID{}, ErrNotFound
	}
	k, r := it.node.GetKey(it.pos), it.node.GetRid(it.pos)
	it.pos++
	return k, r, nil
}

// Restart repositions the iterator at its original starting point.
func (it *Iterator) Restart() error {
	if it.frame != nil {
		if err := it.idx.bpm.UnpinPage(it.frame, false); err != nil {
			return err
		}
		it.frame = nil
	}
	return it.position()
}

// Close releases the iterator's pinned page. It is safe to call more
// than once.
func (it *Iterator) Close() error {
	if it.frame == nil {
		return nil
	}
	err := it.idx.bpm.UnpinPage(it.frame, false)
	it.frame = nil
	it.done = true
	return err
}

func (t *tree) leftmostLeaf(pageID disk.PageID) (disk.PageID, error) {
	for {
		frame, err := t.bpm.FetchPage(pageID)
		if err != nil {
			return disk.InvalidPageID, err
		}
		if t.layout.IsLeaf(frame.Data) {
			if err := t.bpm.UnpinPage(frame, false); err != nil {
				return disk.InvalidPageID, err
			}
			return pageID, nil
		}
		branch := t.layout.DecodeBranch(frame.Data)
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return disk.InvalidPageID, err
		}
		pageID = branch.GetChild(0)
	}
}

func (t *tree) descendToLeaf(pageID disk.PageID, key keytype.Key) (disk.PageID, error) {
	for {
		frame, err := t.bpm.FetchPage(pageID)
		if err != nil {
			return disk.InvalidPageID, err
		}
		if t.layout.IsLeaf(frame.Data) {
			if err := t.bpm.UnpinPage(frame, false); err != nil {
				return disk.InvalidPageID, err
			}
			return pageID, nil
		}
		branch := t.layout.DecodeBranch(frame.Data)
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return disk.InvalidPageID, err
		}
		pos := find(t.layout.KeyType, branch.Keys, key)
		pageID = branch.GetChild(descendIndex(pos))
	}
}

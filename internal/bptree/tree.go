package bptree

import (
	"teachdb/internal/buffer"
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

// imbalance carries a page's decoded contents back to its caller when the
// page cannot be resolved (written back to its fixed-size buffer) at the
// level that touched it: an insert that leaves a page holding one entry
// past Max, or a delete that leaves it one entry short of Min. Only the
// caller one level up has the sibling access (via its own decoded
// children) needed to redistribute or merge, so an overfull page or an
// underfull leaf is left untouched on disk until that happens; an
// underfull branch has already been written back by the level that
// shrank it and is carried up only so its parent can act (spec.md
// §4.7-§4.8).
type imbalance struct {
	pageID disk.PageID
	isLeaf bool
	leaf   *LeafNode
	branch *BranchNode
}

func (t *tree) fetchLeaf(id disk.PageID) (*buffer.Frame, LeafNode, error) {
	f, err := t.bpm.FetchPage(id)
	if err != nil {
		return nil, LeafNode{}, err
	}
	return f, t.layout.DecodeLeaf(f.Data), nil
}

func (t *tree) fetchBranch(id disk.PageID) (*buffer.Frame, BranchNode, error) {
	f, err := t.bpm.FetchPage(id)
	if err != nil {
		return nil, BranchNode{}, err
	}
	return f, t.layout.DecodeBranch(f.Data), nil
}

func (t *tree) writeLeaf(id disk.PageID, n LeafNode) error {
	f, err := t.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	t.layout.EncodeLeaf(f.Data, n)
	return t.bpm.UnpinPage(f, true)
}

func (t *tree) writeBranch(id disk.PageID, n BranchNode) error {
	f, err := t.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	t.layout.EncodeBranch(f.Data, n)
	return t.bpm.UnpinPage(f, true)
}

func (t *tree) allocateLeaf(n LeafNode) (disk.PageID, error) {
	f, err := t.bpm.NewPage()
	if err != nil {
		return disk.InvalidPageID, err
	}
	t.layout.EncodeLeaf(f.Data, n)
	id := f.PageID
	return id, t.bpm.UnpinPage(f, true)
}

func (t *tree) allocateBranch(n BranchNode) (disk.PageID, error) {
	f, err := t.bpm.NewPage()
	if err != nil {
		return disk.InvalidPageID, err
	}
	t.layout.EncodeBranch(f.Data, n)
	id := f.PageID
	return id, t.bpm.UnpinPage(f, true)
}

// splitLeaf divides an overfull leaf node (node, currently resident only
// in memory, decoded from pageID) into two pages of at most LMax entries,
// splicing the new page into the leaf chain and returning the separator
// key promoted to the parent: the first key of the new right page
// (spec.md §4.6 "split-last").
func (t *tree) splitLeaf(pageID disk.PageID, node LeafNode) (newPageID disk.PageID, upKey keytype.Key, err error) {
	mid := len(node.Keys) / 2
	right := LeafNode{
		Keys: append([]keytype.Key(nil), node.Keys[mid:]...),
		Rids: append([]rid.RID(nil), node.Rids[mid:]...),
		Prev: pageID,
		Next: node.Next,
	}
	node.Keys = node.Keys[:mid]
	node.Rids = node.Rids[:mid]

	newPageID, err = t.allocateLeaf(right)
	if err != nil {
		return disk.InvalidPageID, nil, err
	}
	node.Next = newPageID

	if err := t.relinkLeafPrev(right.Next, newPageID); err != nil {
		return disk.InvalidPageID, nil, err
	}

	if err := t.writeLeaf(pageID, node); err != nil {
		return disk.InvalidPageID, nil, err
	}
	return newPageID, right.Keys[0], nil
}

// relinkLeafPrev patches the Prev pointer of the leaf at neighborID (if any)
// to point to newPrevID, used whenever a split or merge changes which page
// precedes neighborID in the leaf chain.
func (t *tree) relinkLeafPrev(neighborID, newPrevID disk.PageID) error {
	if neighborID == disk.InvalidPageID {
		return nil
	}
	f, neighbor, err := t.fetchLeaf(neighborID)
	if err != nil {
		return err
	}
	neighbor.Prev = newPrevID
	t.layout.EncodeLeaf(f.Data, neighbor)
	return t.bpm.UnpinPage(f, true)
}

// splitBranch divides an overfull branch node into two pages of at most
// BMax keys, promoting the middle key (kept in neither half) to the
// parent (spec.md §4.6).
func (t *tree) splitBranch(pageID disk.PageID, node BranchNode) (newPageID disk.PageID, upKey keytype.Key, err error) {
	mid := len(node.Keys) / 2
	upKey = node.Keys[mid]
	right := BranchNode{
		Keys:     append([]keytype.Key(nil), node.Keys[mid+1:]...),
		Children: append([]disk.PageID(nil), node.Children[mid+1:]...),
	}
	node.Keys = node.Keys[:mid]
	node.Children = node.Children[:mid+1]

	newPageID, err = t.allocateBranch(right)
	if err != nil {
		return disk.InvalidPageID, nil, err
	}
	if err := t.writeBranch(pageID, node); err != nil {
		return disk.InvalidPageID, nil, err
	}
	return newPageID, upKey, nil
}

// insert descends to the leaf owning key and places (key, r) there,
// upserting the rid if key is already present. If the touched page
// overflows past its Max occupancy, the overflow is resolved by
// redistributing one entry to a sibling where possible and propagated to
// the caller (as a non-nil *imbalance) only when every sibling is also
// full, per the leaf-insert policy of trying the right sibling before the
// left (spec.md §4.6, §9).
func (t *tree) insert(pageID disk.PageID, key keytype.Key, r rid.RID) (imb *imbalance, isNew bool, err error) {
	frame, err := t.bpm.FetchPage(pageID)
	if err != nil {
		return nil, false, err
	}
	isLeaf := t.layout.IsLeaf(frame.Data)

	if isLeaf {
		node := t.layout.DecodeLeaf(frame.Data)
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return nil, false, err
		}
		pos := find(t.layout.KeyType, node.Keys, key)
		if pos >= 0 {
			node.SetRid(pos, r)
			return nil, false, t.writeLeaf(pageID, node)
		}
		ins := -(pos + 1)
		node.InsertEntry(ins, key, r)
		if node.Size() <= t.layout.LMax {
			return nil, true, t.writeLeaf(pageID, node)
		}
		return &imbalance{pageID: pageID, isLeaf: true, leaf: &node}, true, nil
	}

	self := t.layout.DecodeBranch(frame.Data)
	if err := t.bpm.UnpinPage(frame, false); err != nil {
		return nil, false, err
	}
	pos := find(t.layout.KeyType, self.Keys, key)
	childPos := descendIndex(pos)
	childID := self.GetChild(childPos)

	childImb, isNew, err := t.insert(childID, key, r)
	if err != nil {
		return nil, false, err
	}
	if childImb == nil {
		return nil, isNew, nil
	}
	selfOverflowed, err := t.resolveInsertOverflow(pageID, &self, childPos, childImb)
	if err != nil {
		return nil, false, err
	}
	if selfOverflowed {
		return &imbalance{pageID: pageID, isLeaf: false, branch: &self}, isNew, nil
	}
	return nil, isNew, nil
}

// resolveInsertOverflow fixes up self's child at childPos, which
// overflowed during insert. It redistributes to a sibling if one has
// spare capacity, otherwise splits the child, writing back every page it
// touches, and reports whether self itself is now overflowed (only
// possible after a split, which promotes one key into self) so its own
// caller can redistribute or split self in turn, mirroring
// resolveDeleteUnderflow's selfUnderflowed return.
func (t *tree) resolveInsertOverflow(selfID disk.PageID, self *BranchNode, childPos int, child *imbalance) (bool, error) {
	if child.isLeaf {
		if ok, err := t.tryLeafInsertRedistribute(self, childPos, child.leaf); err != nil {
			return false, err
		} else if ok {
			return t.finishBranchMutation(selfID, self)
		}
		newPageID, upKey, err := t.splitLeaf(child.pageID, *child.leaf)
		if err != nil {
			return false, err
		}
		self.InsertEntry(childPos, upKey, newPageID)
		return t.finishBranchMutation(selfID, self)
	}

	if ok, err := t.tryBranchInsertRedistribute(self, childPos, child.branch); err != nil {
		return false, err
	} else if ok {
		return t.finishBranchMutation(selfID, self)
	}
	newPageID, upKey, err := t.splitBranch(child.pageID, *child.branch)
	if err != nil {
		return false, err
	}
	self.InsertEntry(childPos, upKey, newPageID)
	return t.finishBranchMutation(selfID, self)
}

// finishBranchMutation writes self back if it still fits within BMax and
// reports whether self is overflowed instead. An overfull self is left
// undecoded on disk (its stale bytes are harmless: the caller either
// redistributes or splits the in-memory copy and writes the result, or
// propagates it to the façade for a root split) exactly as an overfull
// leaf is never encoded to its fixed-size buffer either.
func (t *tree) finishBranchMutation(selfID disk.PageID, self *BranchNode) (bool, error) {
	if self.Size() > t.layout.BMax {
		return true, nil
	}
	return false, t.writeBranch(selfID, *self)
}

// tryLeafInsertRedistribute attempts to relieve an overfull leaf (one
// entry past LMax) by moving one entry into a sibling with spare room,
// trying the right sibling before the left (spec.md §9).
func (t *tree) tryLeafInsertRedistribute(self *BranchNode, childPos int, overfull *LeafNode) (bool, error) {
	if childPos < self.Size() {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchLeaf(rightID)
		if err != nil {
			return false, err
		}
		if right.Size() < t.layout.LMax {
			sep := leafBorrowFromLeft(overfull, &right)
			self.SetKey(childPos, sep)
			t.layout.EncodeLeaf(f.Data, right)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			return true, t.writeLeaf(self.GetChild(childPos), *overfull)
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	if childPos > 0 {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchLeaf(leftID)
		if err != nil {
			return false, err
		}
		if left.Size() < t.layout.LMax {
			sep := leafBorrowFromRight(&left, overfull)
			self.SetKey(childPos-1, sep)
			t.layout.EncodeLeaf(f.Data, left)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			return true, t.writeLeaf(self.GetChild(childPos), *overfull)
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	return false, nil
}

// tryBranchInsertRedistribute mirrors tryLeafInsertRedistribute for
// branch children, but tries the left sibling before the right -- the
// intentional asymmetry of spec.md §9.
func (t *tree) tryBranchInsertRedistribute(self *BranchNode, childPos int, overfull *BranchNode) (bool, error) {
	if childPos > 0 {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchBranch(leftID)
		if err != nil {
			return false, err
		}
		if left.Size() < t.layout.BMax {
			sep := self.GetKey(childPos - 1)
			newSep := branchBorrowFromRight(&left, overfull, sep)
			self.SetKey(childPos-1, newSep)
			t.layout.EncodeBranch(f.Data, left)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			return true, t.writeBranch(self.GetChild(childPos), *overfull)
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	if childPos < self.Size() {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchBranch(rightID)
		if err != nil {
			return false, err
		}
		if right.Size() < t.layout.BMax {
			sep := self.GetKey(childPos)
			newSep := branchBorrowFromLeft(overfull, &right, sep)
			self.SetKey(childPos, newSep)
			t.layout.EncodeBranch(f.Data, right)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			return true, t.writeBranch(self.GetChild(childPos), *overfull)
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	return false, nil
}

// remove descends to the leaf owning key and deletes its entry if
// present. If the touched page underflows below its Min occupancy, the
// underflow is resolved by stealing an entry from a sibling where
// possible and propagated to the caller otherwise, trying the left
// sibling before the right for leaves and the right before the left for
// branches (the mirror image of the insert policy, spec.md §9).
func (t *tree) remove(pageID disk.PageID, key keytype.Key) (imb *imbalance, found bool, err error) {
	frame, err := t.bpm.FetchPage(pageID)
	if err != nil {
		return nil, false, err
	}
	isLeaf := t.layout.IsLeaf(frame.Data)

	if isLeaf {
		node := t.layout.DecodeLeaf(frame.Data)
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return nil, false, err
		}
		pos := find(t.layout.KeyType, node.Keys, key)
		if pos < 0 {
			return nil, false, nil
		}
		node.DeleteEntry(pos)
		if node.Size() >= t.layout.LMin {
			return nil, true, t.writeLeaf(pageID, node)
		}
		return &imbalance{pageID: pageID, isLeaf: true, leaf: &node}, true, nil
	}

	self := t.layout.DecodeBranch(frame.Data)
	if err := t.bpm.UnpinPage(frame, false); err != nil {
		return nil, false, err
	}
	pos := find(t.layout.KeyType, self.Keys, key)
	childPos := descendIndex(pos)
	childID := self.GetChild(childPos)

	childImb, found, err := t.remove(childID, key)
	if err != nil {
		return nil, false, err
	}
	if childImb == nil {
		return nil, found, nil
	}

	selfUnderflowed, err := t.resolveDeleteUnderflow(pageID, &self, childPos, childImb)
	if err != nil {
		return nil, false, err
	}
	if selfUnderflowed {
		return &imbalance{pageID: pageID, isLeaf: false, branch: &self}, found, nil
	}
	return nil, found, nil
}

// resolveDeleteUnderflow fixes up self's child at childPos, which
// underflowed during delete, and reports whether self itself is now
// underflowed (only possible after a merge, which removes one of self's
// entries).
func (t *tree) resolveDeleteUnderflow(selfID disk.PageID, self *BranchNode, childPos int, child *imbalance) (bool, error) {
	if child.isLeaf {
		return t.resolveLeafUnderflow(selfID, self, childPos, child.leaf)
	}
	return t.resolveBranchUnderflow(selfID, self, childPos, child.branch)
}

func (t *tree) resolveLeafUnderflow(selfID disk.PageID, self *BranchNode, childPos int, child *LeafNode) (bool, error) {
	childID := self.GetChild(childPos)

	if childPos > 0 {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchLeaf(leftID)
		if err != nil {
			return false, err
		}
		if left.Size() > t.layout.LMin {
			sep := leafBorrowFromLeft(&left, child)
			self.SetKey(childPos-1, sep)
			t.layout.EncodeLeaf(f.Data, left)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			if err := t.writeLeaf(childID, *child); err != nil {
				return false, err
			}
			_, err := t.finishBranchMutation(selfID, self)
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	if childPos < self.Size() {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchLeaf(rightID)
		if err != nil {
			return false, err
		}
		if right.Size() > t.layout.LMin {
			sep := leafBorrowFromRight(child, &right)
			self.SetKey(childPos, sep)
			t.layout.EncodeLeaf(f.Data, right)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			if err := t.writeLeaf(childID, *child); err != nil {
				return false, err
			}
			_, err := t.finishBranchMutation(selfID, self)
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}

	// No sibling can spare an entry: merge. Prefer merging into the left
	// sibling (child's page is discarded) over absorbing the right
	// sibling into child (right's page is discarded); either is a valid
	// "merge-last" resolution, this is just a consistent tie-break.
	if childPos > 0 {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchLeaf(leftID)
		if err != nil {
			return false, err
		}
		leafMerge(&left, child)
		t.layout.EncodeLeaf(f.Data, left)
		if err := t.bpm.UnpinPage(f, true); err != nil {
			return false, err
		}
		if err := t.relinkLeafPrev(left.Next, leftID); err != nil {
			return false, err
		}
		if err := t.deletePage(childID); err != nil {
			return false, err
		}
		self.DeleteEntry(childPos - 1)
	} else {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchLeaf(rightID)
		if err != nil {
			return false, err
		}
		leafMerge(child, &right)
		if err := t.writeLeaf(childID, *child); err != nil {
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
		if err := t.relinkLeafPrev(child.Next, childID); err != nil {
			return false, err
		}
		if err := t.deletePage(rightID); err != nil {
			return false, err
		}
		self.DeleteEntry(childPos)
	}
	if _, err := t.finishBranchMutation(selfID, self); err != nil {
		return false, err
	}
	return self.Size() < t.layout.BMin, nil
}

func (t *tree) resolveBranchUnderflow(selfID disk.PageID, self *BranchNode, childPos int, child *BranchNode) (bool, error) {
	childID := self.GetChild(childPos)

	if childPos < self.Size() {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchBranch(rightID)
		if err != nil {
			return false, err
		}
		if right.Size() > t.layout.BMin {
			sep := self.GetKey(childPos)
			newSep := branchBorrowFromRight(child, &right, sep)
			self.SetKey(childPos, newSep)
			t.layout.EncodeBranch(f.Data, right)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			if err := t.writeBranch(childID, *child); err != nil {
				return false, err
			}
			_, err := t.finishBranchMutation(selfID, self)
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}
	if childPos > 0 {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchBranch(leftID)
		if err != nil {
			return false, err
		}
		if left.Size() > t.layout.BMin {
			sep := self.GetKey(childPos - 1)
			newSep := branchBorrowFromLeft(&left, child, sep)
			self.SetKey(childPos-1, newSep)
			t.layout.EncodeBranch(f.Data, left)
			if err := t.bpm.UnpinPage(f, true); err != nil {
				return false, err
			}
			if err := t.writeBranch(childID, *child); err != nil {
				return false, err
			}
			_, err := t.finishBranchMutation(selfID, self)
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
	}

	if childPos < self.Size() {
		rightID := self.GetChild(childPos + 1)
		f, right, err := t.fetchBranch(rightID)
		if err != nil {
			return false, err
		}
		sep := self.GetKey(childPos)
		branchMerge(child, &right, sep)
		if err := t.writeBranch(childID, *child); err != nil {
			return false, err
		}
		if err := t.bpm.UnpinPage(f, false); err != nil {
			return false, err
		}
		if err := t.deletePage(rightID); err != nil {
			return false, err
		}
		self.DeleteEntry(childPos)
	} else {
		leftID := self.GetChild(childPos - 1)
		f, left, err := t.fetchBranch(leftID)
		if err != nil {
			return false, err
		}
		sep := self.GetKey(childPos - 1)
		branchMerge(&left, child, sep)
		t.layout.EncodeBranch(f.Data, left)
		if err := t.bpm.UnpinPage(f, true); err != nil {
			return false, err
		}
		if err := t.deletePage(childID); err != nil {
			return false, err
		}
		self.DeleteEntry(childPos - 1)
	}
	if _, err := t.finishBranchMutation(selfID, self); err != nil {
		return false, err
	}
	return self.Size() < t.layout.BMin, nil
}

// deletePage pins pageID exclusively and hands it to the buffer manager
// for deallocation.
func (t *tree) deletePage(pageID disk.PageID) error {
	f, err := t.bpm.FetchPage(pageID)
	if err != nil {
		return err
	}
	return t.bpm.DeletePage(f)
}

// search descends to the leaf owning key and returns its rid.
func (t *tree) search(pageID disk.PageID, key keytype.Key) (rid.RID, bool, error) {
	for {
		frame, err := t.bpm.FetchPage(pageID)
		if err != nil {
			return rid.RID{}, false, err
		}
		if t.layout.IsLeaf(frame.Data) {
			node := t.layout.DecodeLeaf(frame.Data)
			if err := t.bpm.UnpinPage(frame, false); err != nil {
				return rid.RID{}, false, err
			}
			pos := find(t.layout.KeyType, node.Keys, key)
			if pos < 0 {
				return rid.RID{}, false, nil
			}
			return node.GetRid(pos), true, nil
		}
		branch := t.layout.DecodeBranch(frame.Data)
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return rid.RID{}, false, err
		}
		pos := find(t.layout.KeyType, branch.Keys, key)
		pageID = branch.GetChild(descendIndex(pos))
	}
}


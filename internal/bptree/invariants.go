package bptree

import (
	"fmt"

	"go.uber.org/multierr"

	"teachdb/internal/disk"
	"teachdb/internal/keytype"
)

// validation accumulates facts gathered during a single tree-traversal
// invariant pass, so they can be cross-checked against a separate
// leaf-chain traversal afterward (spec.md §4.11, §8).
type validation struct {
	leaves   []disk.PageID
	keyCount int64
}

// CheckInvariants walks the whole tree and reports every structural
// invariant violation it finds, aggregated with multierr so a single run
// surfaces every problem instead of stopping at the first one. A nil
// return means the tree is structurally sound.
func (idx *Index) CheckInvariants() error {
	v := &validation{}
	_, _, _, err := idx.validateSubtree(v, idx.root, true)
	var errs error
	errs = multierr.Append(errs, err)

	if v.keyCount != idx.size {
		errs = multierr.Append(errs, fmt.Errorf("%w: recorded size %d does not match %d entries reachable from leaves",
			ErrInvariantViolated, idx.size, v.keyCount))
	}

	chain, cerr := idx.walkLeafChain()
	errs = multierr.Append(errs, cerr)
	if cerr == nil && !equalPageIDs(chain, v.leaves) {
		errs = multierr.Append(errs, fmt.Errorf("%w: leaf chain order does not match in-order tree traversal", ErrInvariantViolated))
	}

	// Only the header stays pinned for the index's whole open lifetime
	// (spec.md §5, §8.7); every other page touched during this check
	// must have been unpinned again.
	if n := idx.bpm.PinnedCount(); n != 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %d buffer frames pinned after invariant check, want 1 (the header)",
			ErrInvariantViolated, n))
	}
	return errs
}

// validateSubtree checks occupancy bounds, key ordering, child arity, and
// separator correctness for the subtree rooted at pageID, returning the
// minimum and maximum key reachable from it (has is false for an empty
// root leaf).
func (idx *Index) validateSubtree(v *validation, pageID disk.PageID, isRoot bool) (lo, hi keytype.Key, has bool, err error) {
	frame, err := idx.bpm.FetchPage(pageID)
	if err != nil {
		return nil, nil, false, err
	}

	if idx.layout.IsLeaf(frame.Data) {
		node := idx.layout.DecodeLeaf(frame.Data)
		if uerr := idx.bpm.UnpinPage(frame, false); uerr != nil {
			return nil, nil, false, uerr
		}

		var errs error
		k := node.Size()
		if !isRoot && (k < idx.layout.LMin || k > idx.layout.LMax) {
			errs = multierr.Append(errs, fmt.Errorf("%w: leaf %d has %d entries, want [%d,%d]",
				ErrInvariantViolated, pageID, k, idx.layout.LMin, idx.layout.LMax))
		} else if isRoot && k > idx.layout.LMax {
			errs = multierr.Append(errs, fmt.Errorf("%w: root leaf %d has %d entries, want <= %d",
				ErrInvariantViolated, pageID, k, idx.layout.LMax))
		}
		for i := 1; i < k; i++ {
			if idx.layout.KeyType.Compare(node.GetKey(i-1), node.GetKey(i)) >= 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: leaf %d keys not strictly ascending at position %d",
					ErrInvariantViolated, pageID, i))
			}
		}

		v.leaves = append(v.leaves, pageID)
		v.keyCount += int64(k)
		if k == 0 {
			return nil, nil, false, errs
		}
		return node.GetKey(0), node.GetKey(k - 1), true, errs
	}

	branch := idx.layout.DecodeBranch(frame.Data)
	if uerr := idx.bpm.UnpinPage(frame, false); uerr != nil {
		return nil, nil, false, uerr
	}

	var errs error
	k := branch.Size()
	if len(branch.Children) != k+1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: branch %d has %d keys but %d children",
			ErrInvariantViolated, pageID, k, len(branch.Children)))
	}
	if !isRoot && (k < idx.layout.BMin || k > idx.layout.BMax) {
		errs = multierr.Append(errs, fmt.Errorf("%w: branch %d has %d keys, want [%d,%d]",
			ErrInvariantViolated, pageID, k, idx.layout.BMin, idx.layout.BMax))
	} else if isRoot && k > idx.layout.BMax {
		errs = multierr.Append(errs, fmt.Errorf("%w: root branch %d has %d keys, want <= %d",
			ErrInvariantViolated, pageID, k, idx.layout.BMax))
	}
	for i := 1; i < k; i++ {
		if idx.layout.KeyType.Compare(branch.GetKey(i-1), branch.GetKey(i)) >= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: branch %d keys not strictly ascending at position %d",
				ErrInvariantViolated, pageID, i))
		}
	}

	var lo2, hi2 keytype.Key
	var has2 bool
	for i, child := range branch.Children {
		clo, chi, chas, cerr := idx.validateSubtree(v, child, false)
		errs = multierr.Append(errs, cerr)
		if !chas {
			continue
		}
		if i < k {
			if idx.layout.KeyType.Compare(chi, branch.GetKey(i)) >= 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: branch %d child %d max key is not less than separator K[%d]",
					ErrInvariantViolated, pageID, i, i))
			}
		}
		if i > 0 {
			if idx.layout.KeyType.Compare(clo, branch.GetKey(i-1)) < 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: branch %d child %d min key is less than separator K[%d]",
					ErrInvariantViolated, pageID, i, i-1))
			}
		}
		if !has2 {
			lo2, has2 = clo, true
		}
		hi2 = chi
	}
	return lo2, hi2, has2, errs
}

// walkLeafChain returns every leaf page id in ascending order by
// following Next pointers from the leftmost leaf, and separately
// verifies that following Prev pointers backward from the last leaf
// retraces the same pages in reverse.
func (idx *Index) walkLeafChain() ([]disk.PageID, error) {
	var ids []disk.PageID
	id, err := idx.leftmostLeaf(idx.root)
	if err != nil {
		return nil, err
	}
	for id != disk.InvalidPageID {
		ids = append(ids, id)
		frame, node, err := idx.fetchLeaf(id)
		if err != nil {
			return nil, err
		}
		if err := idx.bpm.UnpinPage(frame, false); err != nil {
			return nil, err
		}
		id = node.Next
	}

	if len(ids) == 0 {
		return ids, nil
	}
	back := make([]disk.PageID, len(ids))
	cur := ids[len(ids)-1]
	for i := len(ids) - 1; i >= 0; i-- {
		back[i] = cur
		frame, node, err := idx.fetchLeaf(cur)
		if err != nil {
			return nil, err
		}
		if err := idx.bpm.UnpinPage(frame, false); err != nil {
			return nil, err
		}
		cur = node.Prev
	}
	if !equalPageIDs(ids, back) {
		return ids, fmt.Errorf("%w: leaf chain Prev pointers do not mirror Next pointers", ErrInvariantViolated)
	}
	return ids, nil
}

func equalPageIDs(a, b []disk.PageID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

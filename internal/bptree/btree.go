package bptree

import (
	"fmt"

	"go.uber.org/zap"

	"teachdb/internal/buffer"
	"teachdb/internal/catalog"
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

// tree is the unexported recursive engine: the search/insert/remove
// recursion in tree.go and the page-walking helpers shared with the
// iterator and Drop are methods on *tree, built on the plain functions of
// find.go and rotate.go and the node methods of node.go. Index (below)
// wraps it with the root-split/collapse
// handling that only the top of the recursion can perform, plus the
// catalog and header bookkeeping a named, reopenable index needs.
type tree struct {
	bpm    *buffer.Manager
	layout Layout
}

// Index is the B+-tree index façade: a named, durable mapping from keys
// of one fixed-width KeyType to rids, backed by a buffer-pool-managed
// page file (spec.md §6).
type Index struct {
	tree

	name         string
	cat          *catalog.Catalog
	headerFrame  *buffer.Frame
	headerPageID disk.PageID
	root         disk.PageID
	size         int64
	log          *zap.SugaredLogger
}

// Option configures an Index at Create or Open time.
type Option func(*Index)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(idx *Index) { idx.log = l }
}

// Create registers a new empty index named name in cat, backed by bpm,
// with the given key type. It fails with ErrAlreadyExists if name is
// already registered.
func Create(bpm *buffer.Manager, cat *catalog.Catalog, name string, kt keytype.KeyType, opts ...Option) (*Index, error) {
	if _, err := cat.Get(name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}

	layout := NewLayout(bpm.PageSize(), kt)
	if layout.LMax < 2 || layout.BMax < 2 {
		return nil, fmt.Errorf("%w: page size %d too small for key width %d", ErrInvalidArgument, bpm.PageSize(), kt.Width())
	}

	rootFrame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	layout.EncodeLeaf(rootFrame.Data, LeafNode{Prev: disk.InvalidPageID, Next: disk.InvalidPageID})
	rootID := rootFrame.PageID
	if err := bpm.UnpinPage(rootFrame, true); err != nil {
		return nil, err
	}

	headerFrame, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	EncodeHeader(headerFrame.Data, Header{RootPageID: rootID, Size: 0, KeyType: kt})
	headerFrame.MarkDirty()
	headerID := headerFrame.PageID

	if err := cat.Add(name, headerID); err != nil {
		return nil, err
	}

	// The header stays pinned for the index's entire open lifetime
	// (spec.md §5); it is only unpinned by Close.
	idx := &Index{
		tree:         tree{bpm: bpm, layout: layout},
		name:         name,
		cat:          cat,
		headerFrame:  headerFrame,
		headerPageID: headerID,
		root:         rootID,
		size:         0,
		log:          zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Open reopens a previously created index by name.
func Open(bpm *buffer.Manager, cat *catalog.Catalog, name string, opts ...Option) (*Index, error) {
	headerID, err := cat.Get(name)
	if err != nil {
		return nil, err
	}
	frame, err := bpm.FetchPage(headerID)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(frame.Data)
	if err != nil {
		_ = bpm.UnpinPage(frame, false)
		return nil, err
	}

	idx := &Index{
		tree:         tree{bpm: bpm, layout: NewLayout(bpm.PageSize(), h.KeyType)},
		name:         name,
		cat:          cat,
		headerFrame:  frame,
		headerPageID: headerID,
		root:         h.RootPageID,
		size:         h.Size,
		log:          zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Drop deletes every page belonging to the named index and deregisters
// it from cat.
func Drop(bpm *buffer.Manager, cat *catalog.Catalog, name string) error {
	headerID, err := cat.Get(name)
	if err != nil {
		return err
	}
	frame, err := bpm.FetchPage(headerID)
	if err != nil {
		return err
	}
	h, err := DecodeHeader(frame.Data)
	if err != nil {
		_ = bpm.UnpinPage(frame, false)
		return err
	}
	if err := bpm.UnpinPage(frame, false); err != nil {
		return err
	}

	t := &tree{bpm: bpm, layout: NewLayout(bpm.PageSize(), h.KeyType)}
	if err := t.freeSubtree(h.RootPageID); err != nil {
		return err
	}

	hf, err := bpm.FetchPage(headerID)
	if err != nil {
		return err
	}
	if err := bpm.DeletePage(hf); err != nil {
		return err
	}
	return cat.Delete(name)
}

// freeSubtree deallocates every page in the subtree rooted at pageID,
// post-order.
func (t *tree) freeSubtree(pageID disk.PageID) error {
	frame, err := t.bpm.FetchPage(pageID)
	if err != nil {
		return err
	}
	if t.layout.IsLeaf(frame.Data) {
		if err := t.bpm.UnpinPage(frame, false); err != nil {
			return err
		}
		return t.deletePage(pageID)
	}
	branch := t.layout.DecodeBranch(frame.Data)
	if err := t.bpm.UnpinPage(frame, false); err != nil {
		return err
	}
	for _, child := range branch.Children {
		if err := t.freeSubtree(child); err != nil {
			return err
		}
	}
	return t.deletePage(pageID)
}

// Name returns the index's registered name.
func (idx *Index) Name() string { return idx.name }

// KeyType returns the index's key type.
func (idx *Index) KeyType() keytype.KeyType { return idx.layout.KeyType }

// Size returns the number of entries currently stored.
func (idx *Index) Size() int64 { return idx.size }

// Lookup returns the rid stored for key, or ErrNotFound.
func (idx *Index) Lookup(key keytype.Key) (rid.RID, error) {
	r, ok, err := idx.search(idx.root, key)
	if err != nil {
		return rid.RID{}, err
	}
	if !ok {
		return rid.RID{}, ErrNotFound
	}
	return r, nil
}

// Insert upserts (key, r): if key is already present its rid is
// overwritten and Size is unchanged, otherwise a new entry is added.
func (idx *Index) Insert(key keytype.Key, r rid.RID) error {
	imb, isNew, err := idx.insert(idx.root, key, r)
	if err != nil {
		return err
	}
	if imb != nil {
		if err := idx.splitRoot(imb); err != nil {
			return err
		}
	}
	if isNew {
		idx.size++
		if err := idx.persistHeader(); err != nil {
			return err
		}
	}
	return nil
}

// splitRoot handles an overflow propagated all the way to the root: the
// root always splits (it has no siblings to redistribute with), and a
// fresh root branch page is allocated above it.
func (idx *Index) splitRoot(imb *imbalance) error {
	var newPageID disk.PageID
	var upKey keytype.Key
	var err error
	if imb.isLeaf {
		newPageID, upKey, err = idx.splitLeaf(imb.pageID, *imb.leaf)
	} else {
		newPageID, upKey, err = idx.splitBranch(imb.pageID, *imb.branch)
	}
	if err != nil {
		return err
	}

	newRoot := BranchNode{Keys: []keytype.Key{upKey}, Children: []disk.PageID{idx.root, newPageID}}
	newRootID, err := idx.allocateBranch(newRoot)
	if err != nil {
		return err
	}
	idx.root = newRootID
	return idx.persistHeader()
}

// Remove deletes key's entry and reports whether one was removed. It
// takes an rid argument to match the lookup-by-key-and-value shape a
// future duplicate-key extension would need; this design has no
// duplicates, so the argument is accepted and ignored (spec.md §6).
func (idx *Index) Remove(key keytype.Key, _ rid.RID) (bool, error) {
	imb, found, err := idx.remove(idx.root, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if imb != nil {
		if err := idx.resolveRootUnderflow(imb); err != nil {
			return false, err
		}
	}
	idx.size--
	if err := idx.persistHeader(); err != nil {
		return false, err
	}
	return true, nil
}

// resolveRootUnderflow persists a root that underflowed; the root is
// exempt from Min occupancy, except a branch root left with zero keys
// (exactly one child) has become redundant and collapses into that
// child.
func (idx *Index) resolveRootUnderflow(imb *imbalance) error {
	if imb.isLeaf {
		return idx.writeLeaf(imb.pageID, *imb.leaf)
	}
	if imb.branch.Size() == 0 {
		onlyChild := imb.branch.GetChild(0)
		if err := idx.deletePage(imb.pageID); err != nil {
			return err
		}
		idx.root = onlyChild
		return idx.persistHeader()
	}
	return idx.writeBranch(imb.pageID, *imb.branch)
}

// persistHeader writes the current root and size into the header frame,
// which stays pinned for the whole lifetime of the open index; it does
// not itself touch the buffer pool's pin count.
func (idx *Index) persistHeader() error {
	EncodeHeader(idx.headerFrame.Data, Header{RootPageID: idx.root, Size: idx.size, KeyType: idx.layout.KeyType})
	idx.headerFrame.MarkDirty()
	return nil
}

// Close unpins the header (dirty) and flushes every dirty page in the
// buffer pool.
func (idx *Index) Close() error {
	if err := idx.bpm.UnpinPage(idx.headerFrame, true); err != nil {
		return err
	}
	return idx.bpm.Close()
}

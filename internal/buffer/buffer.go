// Package buffer implements the pinning buffer pool manager the B+-tree
// core is built against: it moves fixed-size pages between the disk
// manager and in-memory frames, pins frames while a caller is using them,
// and evicts unpinned frames (least-recently-used first) to make room for
// new pages.
//
// Every frame obtained from this package (via NewPage or FetchPage) comes
// back pinned; callers must pair it with exactly one UnpinPage or
// DeletePage call, on every path including error returns (spec.md §5).
package buffer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"teachdb/internal/disk"
)

// ErrPoolExhausted is returned when every frame is pinned and none can be
// evicted to satisfy a NewPage/FetchPage request.
var ErrPoolExhausted = errors.New("buffer: pool exhausted, all frames pinned")

// Frame is a buffer frame: the in-memory home of one on-disk page plus the
// bookkeeping the pool needs to manage it. Data is exactly PageSize() bytes
// and is mutated in place by callers; IsDirty must become true the moment
// any byte of Data is written, so that Unpin(..., true) is never skipped.
type Frame struct {
	id       int
	PageID   disk.PageID
	Data     []byte
	dirty    bool
	pinCount int
}

func (f *Frame) IsDirty() bool { return f.dirty }
func (f *Frame) PinCount() int { return f.pinCount }

// MarkDirty flags f as dirty without changing its pin count, for a
// caller that holds a page pinned across multiple mutations (the index
// façade's header page, pinned for its entire open lifetime per
// spec.md §5) and writes to it without an intervening Unpin/Pin cycle.
func (f *Frame) MarkDirty() { f.dirty = true }

// Manager is the buffer pool manager.
type Manager struct {
	disk        *disk.Manager
	frames      []*Frame
	pageToFrame map[disk.PageID]int
	freeFrames  []int
	replacer    *lruReplacer
	log         *zap.SugaredLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a buffer pool of poolSize frames backed by dm.
func NewManager(dm *disk.Manager, poolSize int, opts ...Option) *Manager {
	frames := make([]*Frame, poolSize)
	free := make([]int, poolSize)
	for i := range frames {
		frames[i] = &Frame{id: i, PageID: disk.InvalidPageID, Data: make([]byte, dm.PageSize())}
		free[i] = i
	}
	m := &Manager{
		disk:        dm,
		frames:      frames,
		pageToFrame: make(map[disk.PageID]int),
		freeFrames:  free,
		replacer:    newLRUReplacer(),
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PageSize returns the fixed page size of the underlying disk manager.
func (m *Manager) PageSize() int { return m.disk.PageSize() }

// NewPage allocates a fresh page on disk and returns it pinned, with
// zeroed contents, in a frame.
func (m *Manager) NewPage() (*Frame, error) {
	i, err := m.acquireFrame()
	if err != nil {
		return nil, fmt.Errorf("buffer: new page: %w", err)
	}
	id, err := m.disk.AllocatePage()
	if err != nil {
		m.releaseFrame(i)
		return nil, fmt.Errorf("buffer: new page: %w", err)
	}
	f := m.frames[i]
	f.PageID = id
	f.dirty = false
	for j := range f.Data {
		f.Data[j] = 0
	}
	m.pageToFrame[id] = i
	m.pin(f)
	m.log.Debugw("new page", "page_id", id, "frame_id", i)
	return f, nil
}

// FetchPage pins and returns the frame holding pageID, reading it from disk
// if it is not already resident.
func (m *Manager) FetchPage(pageID disk.PageID) (*Frame, error) {
	if i, ok := m.pageToFrame[pageID]; ok {
		f := m.frames[i]
		m.pin(f)
		return f, nil
	}

	i, err := m.acquireFrame()
	if err != nil {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pageID, err)
	}
	f := m.frames[i]
	if err := m.disk.ReadPage(pageID, f.Data); err != nil {
		m.releaseFrame(i)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pageID, err)
	}
	f.PageID = pageID
	f.dirty = false
	m.pageToFrame[pageID] = i
	m.pin(f)
	return f, nil
}

// UnpinPage releases one pin on f. dirty must be true if any byte of
// f.Data was written since f was obtained; once a frame is dirty it stays
// dirty until flushed, even across multiple pin/unpin cycles.
func (m *Manager) UnpinPage(f *Frame, dirty bool) error {
	if f.pinCount <= 0 {
		return fmt.Errorf("buffer: unpin page %d: not pinned", f.PageID)
	}
	if dirty {
		f.dirty = true
	}
	f.pinCount--
	if f.pinCount == 0 {
		m.replacer.setEvictable(f.id, true)
	}
	return nil
}

// DeletePage releases the caller's pin on f and deallocates its page: the
// frame is returned to the free list and the page id is never reused by
// this index. f must be pinned exactly once (by the caller requesting the
// delete).
func (m *Manager) DeletePage(f *Frame) error {
	if f.pinCount != 1 {
		return fmt.Errorf("buffer: delete page %d: expected pin count 1, got %d", f.PageID, f.pinCount)
	}
	id := f.PageID
	delete(m.pageToFrame, id)
	m.replacer.forget(f.id)
	f.pinCount = 0
	f.dirty = false
	f.PageID = disk.InvalidPageID
	m.freeFrames = append(m.freeFrames, f.id)
	m.log.Debugw("deleted page", "page_id", id)
	return nil
}

// FlushPage writes f's contents to disk if dirty, clearing the dirty flag.
func (m *Manager) FlushPage(f *Frame) error {
	if !f.dirty {
		return nil
	}
	if err := m.disk.WritePage(f.PageID, f.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", f.PageID, err)
	}
	f.dirty = false
	return nil
}

// FlushAll writes every resident dirty frame to disk.
func (m *Manager) FlushAll() error {
	for _, f := range m.frames {
		if f.PageID == disk.InvalidPageID {
			continue
		}
		if err := m.FlushPage(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) pin(f *Frame) {
	f.pinCount++
	m.replacer.recordAccess(f.id)
	m.replacer.setEvictable(f.id, false)
}

// acquireFrame returns the index of a frame available for (re)use: a free
// frame if one exists, otherwise the least-recently-used evictable frame,
// flushed first if dirty.
func (m *Manager) acquireFrame() (int, error) {
	if n := len(m.freeFrames); n > 0 {
		i := m.freeFrames[n-1]
		m.freeFrames = m.freeFrames[:n-1]
		return i, nil
	}

	i, ok := m.replacer.evict()
	if !ok {
		return 0, ErrPoolExhausted
	}
	victim := m.frames[i]
	if err := m.FlushPage(victim); err != nil {
		return 0, err
	}
	delete(m.pageToFrame, victim.PageID)
	m.log.Debugw("evicted frame", "frame_id", i, "page_id", victim.PageID)
	return i, nil
}

func (m *Manager) releaseFrame(i int) {
	m.replacer.forget(i)
	m.freeFrames = append(m.freeFrames, i)
}

// Close flushes every resident dirty frame.
func (m *Manager) Close() error {
	return m.FlushAll()
}

// PinnedCount returns the number of frames currently pinned. Callers use
// this to assert pin balance at the end of an operation: every Pin must
// be matched by an Unpin or a DeletePage, so between top-level calls this
// counts only pages a caller holds pinned on purpose (an open index's
// header page).
func (m *Manager) PinnedCount() int {
	n := 0
	for _, f := range m.frames {
		if f.pinCount > 0 {
			n++
		}
	}
	return n
}

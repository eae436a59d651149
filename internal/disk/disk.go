// Package disk is the on-disk file collaborator the buffer pool reads pages
// from and writes pages to: a single flat file of fixed-size pages,
// addressed by page id. It never interprets page contents — that is the
// page codec's job (internal/bptree) — it only moves bytes at
// id*PageSize-aligned offsets.
package disk

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// PageID is an opaque page identifier. InvalidPageID is the sentinel used
// throughout the core to mean "no page" (e.g. an absent sibling, an empty
// tree's initial prev/next pointers).
type PageID uint32

// Width is the fixed on-disk size of a serialized PageID.
const Width = 4

// InvalidPageID denotes "invalid / none".
const InvalidPageID PageID = 1<<32 - 1

// Manager reads and writes fixed-size pages of a single backing file and
// hands out fresh page ids. It holds no knowledge of page contents.
type Manager struct {
	fs       afero.Fs
	path     string
	pageSize int

	mu       sync.Mutex
	file     afero.File
	numPages uint32
	log      *zap.SugaredLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) { m.log = l }
}

// Open opens (creating if necessary) the backing file at path on fs, sized
// in pageSize-byte pages.
func Open(fs afero.Fs, path string, pageSize int, opts ...Option) (*Manager, error) {
	f, err := fs.OpenFile(path, rdwrCreate, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	m := &Manager{
		fs:       fs,
		path:     path,
		pageSize: pageSize,
		file:     f,
		numPages: uint32(info.Size() / int64(pageSize)),
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PageSize returns the fixed page size this manager was opened with.
func (m *Manager) PageSize() int { return m.pageSize }

// NumPages returns the number of pages ever allocated in this file.
func (m *Manager) NumPages() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numPages
}

// AllocatePage reserves a fresh page id and grows the backing file to cover
// it, without reading or writing its contents.
func (m *Manager) AllocatePage() (PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := PageID(m.numPages)
	m.numPages++
	off := int64(id) * int64(m.pageSize)
	if _, err := m.file.WriteAt(make([]byte, m.pageSize), off); err != nil {
		m.numPages--
		return InvalidPageID, fmt.Errorf("disk: allocate page %d: %w", id, err)
	}
	m.log.Debugw("allocated page", "page_id", id)
	return id, nil
}

// ReadPage reads the page identified by id into buf, which must be exactly
// PageSize() bytes.
func (m *Manager) ReadPage(id PageID, buf []byte) error {
	if len(buf) != m.pageSize {
		return fmt.Errorf("disk: read page %d: buffer size %d != page size %d", id, len(buf), m.pageSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int64(id) * int64(m.pageSize)
	if _, err := m.file.ReadAt(buf, off); err != nil {
		return fmt.Errorf("disk: read page %d: %w", id, err)
	}
	return nil
}

// WritePage writes buf (exactly PageSize() bytes) to the page identified by
// id.
func (m *Manager) WritePage(id PageID, buf []byte) error {
	if len(buf) != m.pageSize {
		return fmt.Errorf("disk: write page %d: buffer size %d != page size %d", id, len(buf), m.pageSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int64(id) * int64(m.pageSize)
	if _, err := m.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("disk: write page %d: %w", id, err)
	}
	m.log.Debugw("wrote page", "page_id", id)
	return nil
}

// Close flushes and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync %s: %w", m.path, err)
	}
	return m.file.Close()
}

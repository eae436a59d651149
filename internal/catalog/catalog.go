// Package catalog is the file-entry registry collaborator from spec.md §6:
// a durable name -> header-page-id mapping so a named index can be reopened
// by name across process restarts.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"teachdb/internal/disk"
)

// ErrNameExists is returned by Add when name is already registered.
var ErrNameExists = errors.New("catalog: name already exists")

// ErrNameNotFound is returned by Get/Delete when name is not registered.
var ErrNameNotFound = errors.New("catalog: name not found")

// Catalog is a persisted name -> header page id registry.
type Catalog struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	entries map[string]disk.PageID
}

// Open loads the catalog sidecar at path on fs, starting with an empty
// registry if it does not yet exist; the file is first written by Add or
// Delete.
func Open(fs afero.Fs, path string) (*Catalog, error) {
	c := &Catalog{fs: fs, path: path, entries: make(map[string]disk.PageID)}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat %s: %w", path, err)
	}
	if !exists {
		return c, nil
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return c, nil
	}
	var onDisk map[string]uint32
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	for name, id := range onDisk {
		c.entries[name] = disk.PageID(id)
	}
	return c, nil
}

// Get returns the header page id registered for name.
func (c *Catalog) Get(name string) (disk.PageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[name]
	if !ok {
		return disk.InvalidPageID, ErrNameNotFound
	}
	return id, nil
}

// Add registers name -> id, failing if name is already present.
func (c *Catalog) Add(name string, id disk.PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return ErrNameExists
	}
	c.entries[name] = id
	return c.persistLocked()
}

// Delete deregisters name, failing if it is not present.
func (c *Catalog) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; !ok {
		return ErrNameNotFound
	}
	delete(c.entries, name)
	return c.persistLocked()
}

func (c *Catalog) persistLocked() error {
	onDisk := make(map[string]uint32, len(c.entries))
	for name, id := range c.entries {
		onDisk[name] = uint32(id)
	}
	raw, err := json.Marshal(onDisk)
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}
	if err := afero.WriteFile(c.fs, c.path, raw, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", c.path, err)
	}
	return nil
}

package bptree

import (
	"errors"

	"teachdb/internal/buffer"
)

// Sentinel errors returned by the index façade, per spec.md §7. Callers
// should compare with errors.Is, since internal wrapping adds context.
var (
	// ErrNotFound is returned by Lookup when the key is absent, and by
	// Iterator.Next when the scan is exhausted. Remove reports an absent
	// key as (false, nil) instead.
	ErrNotFound = errors.New("bptree: key not found")
	// ErrAlreadyExists is returned by Create when a name is already
	// registered. Insert never returns it: an existing key is upserted.
	ErrAlreadyExists = errors.New("bptree: already exists")
	// ErrInvalidArgument is returned by Create when the page size is too
	// small to hold the minimum occupancy bounds for the key width.
	ErrInvalidArgument = errors.New("bptree: invalid argument")
	// ErrInvariantViolated is returned by CheckInvariants when a structural
	// invariant does not hold.
	ErrInvariantViolated = errors.New("bptree: invariant violated")
	// ErrResourceExhausted is returned (wrapped) when the buffer pool
	// cannot satisfy a pin request because every frame is pinned; it is
	// the same value as buffer.ErrPoolExhausted. Disk-manager failures
	// propagate as the disk package's own errors.
	ErrResourceExhausted = buffer.ErrPoolExhausted
)

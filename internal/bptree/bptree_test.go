package bptree_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"teachdb/internal/bptree"
	"teachdb/internal/buffer"
	"teachdb/internal/catalog"
	"teachdb/internal/disk"
	"teachdb/internal/keytype"
	"teachdb/internal/rid"
)

// newTestIndex wires an in-memory disk+buffer+catalog stack with a page
// size small enough (LMax=4, LMin=2 for Int64Key) to exercise splits,
// merges, and redistribution after only a handful of inserts.
func newTestIndex(t *testing.T, name string) (*bptree.Index, *buffer.Manager, *catalog.Catalog) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dm, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)
	bpm := buffer.NewManager(dm, 64)
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	idx, err := bptree.Create(bpm, cat, name, keytype.Int64Key{})
	require.NoError(t, err)
	return idx, bpm, cat
}

func r(n int) rid.RID { return rid.RID{PageID: disk.PageID(n), SlotID: uint16(n)} }

func TestEmptyLifecycle(t *testing.T) {
	idx, _, _ := newTestIndex(t, "empty")
	require.EqualValues(t, 0, idx.Size())
	require.NoError(t, idx.CheckInvariants())

	_, err := idx.Lookup(int64(1))
	require.ErrorIs(t, err, bptree.ErrNotFound)

	ok, err := idx.Remove(int64(1), rid.RID{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSingleInsertLookup(t *testing.T) {
	idx, _, _ := newTestIndex(t, "single")
	require.NoError(t, idx.Insert(int64(42), r(1)))
	require.EqualValues(t, 1, idx.Size())

	got, err := idx.Lookup(int64(42))
	require.NoError(t, err)
	require.Equal(t, r(1), got)
	require.NoError(t, idx.CheckInvariants())
}

func TestCreateDuplicateNameFails(t *testing.T) {
	_, bpm, cat := newTestIndex(t, "dup")
	_, err := bptree.Create(bpm, cat, "dup", keytype.Int64Key{})
	require.ErrorIs(t, err, bptree.ErrAlreadyExists)
}

func TestInsertUpsertsExistingKey(t *testing.T) {
	idx, _, _ := newTestIndex(t, "upsert")
	require.NoError(t, idx.Insert(int64(1), r(1)))
	require.NoError(t, idx.Insert(int64(1), r(2)))
	require.EqualValues(t, 1, idx.Size())

	got, err := idx.Lookup(int64(1))
	require.NoError(t, err)
	require.Equal(t, r(2), got)
}

func TestRemoveAbsentKeyLeavesSizeUnchanged(t *testing.T) {
	idx, _, _ := newTestIndex(t, "remove-absent")
	require.NoError(t, idx.Insert(int64(5), r(5)))
	ok, err := idx.Remove(int64(99), rid.RID{})
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, idx.Size())
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	idx, _, _ := newTestIndex(t, "roundtrip")
	require.NoError(t, idx.Insert(int64(1), r(1)))
	ok, err := idx.Remove(int64(1), rid.RID{})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = idx.Lookup(int64(1))
	require.ErrorIs(t, err, bptree.ErrNotFound)
	require.EqualValues(t, 0, idx.Size())
	require.NoError(t, idx.CheckInvariants())
}

func TestSequentialFillAndScan(t *testing.T) {
	idx, _, _ := newTestIndex(t, "seq")
	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	require.EqualValues(t, n, idx.Size())
	require.NoError(t, idx.CheckInvariants())

	it, err := idx.Scan()
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		k, rr, err := it.Next()
		require.NoError(t, err)
		require.Equal(t, r(int(k.(int64))), rr)
		got = append(got, k.(int64))
	}
	require.Len(t, got, n)
	for i := 0; i < n; i++ {
		require.EqualValues(t, i, got[i])
	}
}

func TestReverseFill(t *testing.T) {
	idx, _, _ := newTestIndex(t, "rev")
	const n = 100
	for i := n - 1; i >= 0; i-- {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	require.EqualValues(t, n, idx.Size())
	require.NoError(t, idx.CheckInvariants())

	for i := 0; i < n; i++ {
		got, err := idx.Lookup(int64(i))
		require.NoError(t, err)
		require.Equal(t, r(i), got)
	}
}

func TestScanFromMidpoint(t *testing.T) {
	idx, _, _ := newTestIndex(t, "scanfrom")
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, idx.Insert(int64(i*2), r(i)))
	}
	it, err := idx.ScanFrom(int64(30))
	require.NoError(t, err)
	defer it.Close()

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	k, _, err := it.Next()
	require.NoError(t, err)
	require.EqualValues(t, 30, k)
}

func TestScanEqualExhaustsAfterOneMatch(t *testing.T) {
	idx, _, _ := newTestIndex(t, "scaneq")
	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	it, err := idx.ScanEqual(int64(10))
	require.NoError(t, err)
	defer it.Close()

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	k, rr, err := it.Next()
	require.NoError(t, err)
	require.EqualValues(t, 10, k)
	require.Equal(t, r(10), rr)

	ok, err = it.HasNext()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScanEqualAbsentKeyYieldsNothing(t *testing.T) {
	idx, _, _ := newTestIndex(t, "scaneq-absent")
	for i := 0; i < 20; i += 2 {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	it, err := idx.ScanEqual(int64(7))
	require.NoError(t, err)
	defer it.Close()

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteToEmptyAlternatingOutward(t *testing.T) {
	idx, _, _ := newTestIndex(t, "delete-outward")
	for i := 0; i < 100; i++ {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	require.NoError(t, idx.CheckInvariants())

	// remove in the order 50,49,51,48,52,... so both leaf and branch
	// underflow resolution (steal from both sides, and merges) are
	// exercised as the tree drains from the middle outward.
	order := make([]int, 0, 100)
	lo, hi := 49, 50
	for len(order) < 100 {
		order = append(order, hi)
		hi++
		if len(order) < 100 {
			order = append(order, lo)
			lo--
		}
	}

	for i, k := range order {
		ok, err := idx.Remove(int64(k), rid.RID{})
		require.NoError(t, err)
		require.Truef(t, ok, "remove %d (step %d)", k, i)
		require.NoError(t, idx.CheckInvariants())
	}
	require.EqualValues(t, 0, idx.Size())
}

func TestCloseAndReopenPreservesData(t *testing.T) {
	fs := afero.NewMemMapFs()
	dm, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)
	bpm := buffer.NewManager(dm, 64)
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	idx, err := bptree.Create(bpm, cat, "persist", keytype.Int64Key{})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	require.NoError(t, idx.Close())

	reopened, err := bptree.Open(bpm, cat, "persist")
	require.NoError(t, err)
	require.EqualValues(t, 30, reopened.Size())
	for i := 0; i < 30; i++ {
		got, err := reopened.Lookup(int64(i))
		require.NoError(t, err)
		require.Equal(t, r(i), got)
	}
	require.NoError(t, reopened.CheckInvariants())
	require.NoError(t, reopened.Close())
}

func TestDropRemovesIndexAndPages(t *testing.T) {
	fs := afero.NewMemMapFs()
	dm, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)
	bpm := buffer.NewManager(dm, 64)
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	idx, err := bptree.Create(bpm, cat, "droppable", keytype.Int64Key{})
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, idx.Insert(int64(i), r(i)))
	}
	require.NoError(t, idx.Close())

	require.NoError(t, bptree.Drop(bpm, cat, "droppable"))
	_, err = bptree.Open(bpm, cat, "droppable")
	require.ErrorIs(t, err, catalog.ErrNameNotFound)
}

func TestFixedStringKeyIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	dm, err := disk.Open(fs, "teachdb.db", 256)
	require.NoError(t, err)
	bpm := buffer.NewManager(dm, 64)
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	idx, err := bptree.Create(bpm, cat, "strings", keytype.FixedStringKey{N: 8})
	require.NoError(t, err)

	keys := []string{"banana", "apple", "cherry", "date"}
	for i, k := range keys {
		b := make([]byte, 8)
		copy(b, k)
		require.NoError(t, idx.Insert(keytype.Key(b), r(i)))
	}
	require.NoError(t, idx.CheckInvariants())

	it, err := idx.Scan()
	require.NoError(t, err)
	defer it.Close()
	var got []string
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		k, _, err := it.Next()
		require.NoError(t, err)
		kb := k.([]byte)
		n := 0
		for n < len(kb) && kb[n] != 0 {
			n++
		}
		got = append(got, string(kb[:n]))
	}
	require.Equal(t, []string{"apple", "banana", "cherry", "date"}, got)
}

func TestPageTooSmallForKeyTypeRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	dm, err := disk.Open(fs, "teachdb.db", 16)
	require.NoError(t, err)
	bpm := buffer.NewManager(dm, 4)
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	_, err = bptree.Create(bpm, cat, "toosmall", keytype.FixedStringKey{N: 64})
	require.ErrorIs(t, err, bptree.ErrInvalidArgument)
}

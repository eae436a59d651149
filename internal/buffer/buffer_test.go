package buffer_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"teachdb/internal/buffer"
	"teachdb/internal/disk"
)

func newManager(t *testing.T, poolSize int) *buffer.Manager {
	t.Helper()
	dm, err := disk.Open(afero.NewMemMapFs(), "teachdb.db", 64)
	require.NoError(t, err)
	return buffer.NewManager(dm, poolSize)
}

func TestNewPageRoundTrip(t *testing.T) {
	m := newManager(t, 4)
	f, err := m.NewPage()
	require.NoError(t, err)
	copy(f.Data, []byte("hello"))
	require.NoError(t, m.UnpinPage(f, true))
	require.EqualValues(t, 0, m.PinnedCount())

	f2, err := m.FetchPage(f.PageID)
	require.NoError(t, err)
	require.Equal(t, byte('h'), f2.Data[0])
	require.NoError(t, m.UnpinPage(f2, false))
}

func TestUnpinWithoutPinErrors(t *testing.T) {
	m := newManager(t, 1)
	f, err := m.NewPage()
	require.NoError(t, err)
	require.NoError(t, m.UnpinPage(f, false))
	require.Error(t, m.UnpinPage(f, false))
}

func TestEvictionRequiresUnpinnedFrame(t *testing.T) {
	m := newManager(t, 1)
	f, err := m.NewPage()
	require.NoError(t, err)
	// pool exhausted: the only frame is still pinned
	_, err = m.NewPage()
	require.ErrorIs(t, err, buffer.ErrPoolExhausted)

	require.NoError(t, m.UnpinPage(f, false))
	// now the frame is evictable and a new page can take its place
	f2, err := m.NewPage()
	require.NoError(t, err)
	require.NoError(t, m.UnpinPage(f2, false))
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	m := newManager(t, 1)
	f, err := m.NewPage()
	require.NoError(t, err)
	copy(f.Data, []byte("dirty"))
	firstID := f.PageID
	require.NoError(t, m.UnpinPage(f, true))

	f2, err := m.NewPage()
	require.NoError(t, err)
	require.NoError(t, m.UnpinPage(f2, false))

	back, err := m.FetchPage(firstID)
	require.NoError(t, err)
	require.Equal(t, byte('d'), back.Data[0])
	require.NoError(t, m.UnpinPage(back, false))
}

func TestMarkDirtySurvivesUnpinWithoutDirtyFlag(t *testing.T) {
	m := newManager(t, 2)
	f, err := m.NewPage()
	require.NoError(t, err)
	copy(f.Data, []byte("pinned-write"))
	f.MarkDirty()
	require.True(t, f.IsDirty())

	// UnpinPage(f, false) must not clear a dirty flag set by MarkDirty:
	// a caller holding a page pinned across several writes (the index's
	// header page) only calls MarkDirty, never Unpin, between writes.
	require.NoError(t, m.UnpinPage(f, false))
	require.True(t, f.IsDirty())
}

func TestPinnedCount(t *testing.T) {
	m := newManager(t, 4)
	require.EqualValues(t, 0, m.PinnedCount())
	f1, err := m.NewPage()
	require.NoError(t, err)
	f2, err := m.NewPage()
	require.NoError(t, err)
	require.EqualValues(t, 2, m.PinnedCount())
	require.NoError(t, m.UnpinPage(f1, false))
	require.EqualValues(t, 1, m.PinnedCount())
	require.NoError(t, m.UnpinPage(f2, false))
	require.EqualValues(t, 0, m.PinnedCount())
}

func TestDeletePageFreesFrame(t *testing.T) {
	m := newManager(t, 1)
	f, err := m.NewPage()
	require.NoError(t, err)
	id := f.PageID
	require.NoError(t, m.DeletePage(f))

	// the frame should be reusable immediately, without needing eviction
	f2, err := m.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, id, f2.PageID)
	require.NoError(t, m.UnpinPage(f2, false))
}

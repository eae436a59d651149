package disk_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"teachdb/internal/disk"
)

func TestAllocateReadWritePage(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)

	id, err := m.AllocatePage()
	require.NoError(t, err)
	require.EqualValues(t, 0, id)
	require.EqualValues(t, 1, m.NumPages())

	buf := make([]byte, 128)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, m.WritePage(id, buf))

	out := make([]byte, 128)
	require.NoError(t, m.ReadPage(id, out))
	require.Equal(t, buf, out)

	id2, err := m.AllocatePage()
	require.NoError(t, err)
	require.EqualValues(t, 1, id2)
	require.EqualValues(t, 2, m.NumPages())
}

func TestReadWriteWrongSizeRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)

	id, err := m.AllocatePage()
	require.NoError(t, err)

	require.Error(t, m.ReadPage(id, make([]byte, 64)))
	require.Error(t, m.WritePage(id, make([]byte, 64)))
}

func TestReopenPreservesPageCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := m.AllocatePage()
		require.NoError(t, err)
	}
	require.NoError(t, m.Close())

	m2, err := disk.Open(fs, "teachdb.db", 128)
	require.NoError(t, err)
	require.EqualValues(t, 5, m2.NumPages())
}

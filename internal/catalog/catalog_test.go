package catalog_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"teachdb/internal/catalog"
	"teachdb/internal/disk"
)

func TestAddGetDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)

	_, err = cat.Get("idx")
	require.ErrorIs(t, err, catalog.ErrNameNotFound)

	require.NoError(t, cat.Add("idx", disk.PageID(7)))
	id, err := cat.Get("idx")
	require.NoError(t, err)
	require.EqualValues(t, 7, id)

	require.ErrorIs(t, cat.Add("idx", disk.PageID(8)), catalog.ErrNameExists)

	require.NoError(t, cat.Delete("idx"))
	_, err = cat.Get("idx")
	require.ErrorIs(t, err, catalog.ErrNameNotFound)
	require.ErrorIs(t, cat.Delete("idx"), catalog.ErrNameNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	cat, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)
	require.NoError(t, cat.Add("a", disk.PageID(1)))
	require.NoError(t, cat.Add("b", disk.PageID(2)))

	reopened, err := catalog.Open(fs, "catalog.json")
	require.NoError(t, err)
	id, err := reopened.Get("a")
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	id, err = reopened.Get("b")
	require.NoError(t, err)
	require.EqualValues(t, 2, id)
}

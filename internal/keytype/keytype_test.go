package keytype_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"teachdb/internal/keytype"
)

func TestInt64KeyReadWriteCompare(t *testing.T) {
	kt := keytype.Int64Key{}
	buf := make([]byte, kt.Width())
	kt.Write(buf, 0, int64(-42))
	require.Equal(t, int64(-42), kt.Read(buf, 0))

	require.Negative(t, kt.Compare(int64(1), int64(2)))
	require.Zero(t, kt.Compare(int64(5), int64(5)))
	require.Positive(t, kt.Compare(int64(9), int64(3)))
}

func TestFixedStringKeyZeroPadsAndCompares(t *testing.T) {
	kt := keytype.FixedStringKey{N: 8}
	buf := make([]byte, kt.Width())
	kt.Write(buf, 0, []byte("ab"))
	got := kt.Read(buf, 0).([]byte)
	require.Len(t, got, 8)
	require.Equal(t, []byte("ab\x00\x00\x00\x00\x00\x00"), got)

	require.Negative(t, kt.Compare([]byte("ab\x00\x00\x00\x00\x00\x00"), []byte("ac\x00\x00\x00\x00\x00\x00")))
}

func TestDescriptorRoundTrip(t *testing.T) {
	buf := make([]byte, keytype.DescriptorSize)
	keytype.Int64Key{}.WriteDescriptor(buf, 0)
	got, err := keytype.ReadDescriptor(buf, 0)
	require.NoError(t, err)
	require.Equal(t, keytype.Int64Key{}, got)

	buf2 := make([]byte, keytype.DescriptorSize)
	keytype.FixedStringKey{N: 16}.WriteDescriptor(buf2, 0)
	got2, err := keytype.ReadDescriptor(buf2, 0)
	require.NoError(t, err)
	require.Equal(t, keytype.FixedStringKey{N: 16}, got2)
}

func TestReadDescriptorUnknownKind(t *testing.T) {
	buf := make([]byte, keytype.DescriptorSize)
	buf[0] = 0xff
	_, err := keytype.ReadDescriptor(buf, 0)
	require.Error(t, err)
}

package bptree

import (
	"encoding/binary"

	"teachdb/internal/disk"
	"teachdb/internal/keytype"
)

// Header is the decoded form of an index's header page: the root page id,
// the total entry count, and the key-type descriptor needed to reopen the
// index without being told its key type again (spec.md §6 "Header page").
type Header struct {
	RootPageID disk.PageID
	Size       int64
	KeyType    keytype.KeyType
}

const (
	headerRootOff = 0
	headerSizeOff = headerRootOff + disk.Width
	headerDescOff = headerSizeOff + 8
)

// DecodeHeader reads a header page out of buf.
func DecodeHeader(buf []byte) (Header, error) {
	kt, err := keytype.ReadDescriptor(buf, headerDescOff)
	if err != nil {
		return Header{}, err
	}
	return Header{
		RootPageID: getPageID(buf[headerRootOff:]),
		Size:       int64(binary.BigEndian.Uint64(buf[headerSizeOff : headerSizeOff+8])),
		KeyType:    kt,
	}, nil
}

// EncodeHeader writes h into buf.
func EncodeHeader(buf []byte, h Header) {
	putBEUint32AsPageID(buf[headerRootOff:], h.RootPageID)
	binary.BigEndian.PutUint64(buf[headerSizeOff:headerSizeOff+8], uint64(h.Size))
	h.KeyType.WriteDescriptor(buf, headerDescOff)
}

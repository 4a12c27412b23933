package binomdb

import "fmt"

// dbHeader is always at offset 0 of the file. root_node is the only node
// whose virtual index is 0; it lives inside the header rather than a Node
// page, so a fresh database needs zero pages before its first allocation.
type dbHeader struct {
	Magic         uint64
	Version       uint32
	HeapPageSize  uint32
	RootNode      NodeDescriptor
	FirstNodePage RealIndex
	FirstHeapPage RealIndex
	FirstBytePage RealIndex
}

// Byte offsets of each header field, used to patch a single field in place
// instead of rewriting the whole header on every structural change.
const (
	headerMagicOff        = 0
	headerVersionOff      = 8
	headerHeapPageSizeOff = 12
	headerRootNodeOff     = 16
	headerFirstNodePageOff = headerRootNodeOff + nodeDescriptorSize
	headerFirstHeapPageOff = headerFirstNodePageOff + 8
	headerFirstBytePageOff = headerFirstHeapPageOff + 8
	headerSize             = headerFirstBytePageOff + 8
)

func newHeader(heapPageSize uint32) dbHeader {
	return dbHeader{
		Magic:        fileMagic,
		Version:      formatVersion,
		HeapPageSize: heapPageSize,
		RootNode:     emptyNodeDescriptor,
	}
}

func (h dbHeader) encode(b []byte) {
	_ = b[headerSize-1]
	putUint64LE(b[headerMagicOff:headerMagicOff+8], h.Magic)
	putUint32LE(b[headerVersionOff:headerVersionOff+4], h.Version)
	putUint32LE(b[headerHeapPageSizeOff:headerHeapPageSizeOff+4], h.HeapPageSize)
	h.RootNode.encode(b[headerRootNodeOff : headerRootNodeOff+nodeDescriptorSize])
	putUint64LE(b[headerFirstNodePageOff:headerFirstNodePageOff+8], uint64(h.FirstNodePage))
	putUint64LE(b[headerFirstHeapPageOff:headerFirstHeapPageOff+8], uint64(h.FirstHeapPage))
	putUint64LE(b[headerFirstBytePageOff:headerFirstBytePageOff+8], uint64(h.FirstBytePage))
}

func decodeHeader(b []byte) (dbHeader, error) {
	if len(b) < headerSize {
		return dbHeader{}, NewError(ErrCorrupted)
	}
	h := dbHeader{
		Magic:         getUint64LE(b[headerMagicOff : headerMagicOff+8]),
		Version:       getUint32LE(b[headerVersionOff : headerVersionOff+4]),
		HeapPageSize:  getUint32LE(b[headerHeapPageSizeOff : headerHeapPageSizeOff+4]),
		RootNode:      decodeNodeDescriptor(b[headerRootNodeOff : headerRootNodeOff+nodeDescriptorSize]),
		FirstNodePage: RealIndex(getUint64LE(b[headerFirstNodePageOff : headerFirstNodePageOff+8])),
		FirstHeapPage: RealIndex(getUint64LE(b[headerFirstHeapPageOff : headerFirstHeapPageOff+8])),
		FirstBytePage: RealIndex(getUint64LE(b[headerFirstBytePageOff : headerFirstBytePageOff+8])),
	}
	if h.Magic != fileMagic {
		return dbHeader{}, NewError(ErrCorrupted)
	}
	if h.Version != formatVersion {
		return dbHeader{}, WrapError(ErrCorrupted, fmt.Errorf("format version %d, want %d", h.Version, formatVersion))
	}
	return h, nil
}

package binomdb

// On-disk record sizes. All records are packed little-endian with no
// alignment padding; encode/decode methods below compose the bytes by hand
// so Go struct layout never leaks onto disk.
const (
	nodeDescriptorSize     = 20 // type(2) + reserved(2) + size(8) + index(8)
	nodePageDescriptorSize = 16 // next(8) + node_map(8)
	heapPageDescriptorSize = 16 // next(8) + reserved(8)
	bytePageDescriptorSize = 16 // next(8) + occupancy(8)
)

// NodeDescriptor is the fixed-size record every node virtual index resolves
// to. For a container type (see VarType.IsContainer), Index and Size name
// the heap region the node owns; for a primitive type they carry the value
// or a byte-index per that type's own convention.
type NodeDescriptor struct {
	Type  VarType
	Size  uint64
	Index VirtualIndex
}

func (d NodeDescriptor) encode(b []byte) {
	_ = b[nodeDescriptorSize-1]
	putUint16LE(b[0:2], uint16(d.Type))
	putUint16LE(b[2:4], 0)
	putUint64LE(b[4:12], d.Size)
	putUint64LE(b[12:20], uint64(d.Index))
}

func decodeNodeDescriptor(b []byte) NodeDescriptor {
	_ = b[nodeDescriptorSize-1]
	return NodeDescriptor{
		Type:  VarType(getUint16LE(b[0:2])),
		Size:  getUint64LE(b[4:12]),
		Index: VirtualIndex(getUint64LE(b[12:20])),
	}
}

// emptyNodeDescriptor is the value a freed root slot is reset to.
var emptyNodeDescriptor = NodeDescriptor{Type: TypeEnd}

// nodePageDescriptor is the fixed header at the start of every Node page.
// The 64 NodeDescriptor slots follow immediately after it.
type nodePageDescriptor struct {
	NextNodePage RealIndex
	NodeMap      uint64 // bit k set iff slot k is allocated
}

func (d nodePageDescriptor) encode(b []byte) {
	_ = b[nodePageDescriptorSize-1]
	putUint64LE(b[0:8], uint64(d.NextNodePage))
	putUint64LE(b[8:16], d.NodeMap)
}

func decodeNodePageDescriptor(b []byte) nodePageDescriptor {
	_ = b[nodePageDescriptorSize-1]
	return nodePageDescriptor{
		NextNodePage: RealIndex(getUint64LE(b[0:8])),
		NodeMap:      getUint64LE(b[8:16]),
	}
}

// heapPageDescriptor is the fixed header at the start of every Heap page.
// Uninterpreted heap payload bytes follow it.
type heapPageDescriptor struct {
	NextHeapPage RealIndex
}

func (d heapPageDescriptor) encode(b []byte) {
	_ = b[heapPageDescriptorSize-1]
	putUint64LE(b[0:8], uint64(d.NextHeapPage))
	putUint64LE(b[8:16], 0)
}

func decodeHeapPageDescriptor(b []byte) heapPageDescriptor {
	_ = b[heapPageDescriptorSize-1]
	return heapPageDescriptor{NextHeapPage: RealIndex(getUint64LE(b[0:8]))}
}

// bytePageDescriptor is the fixed header at the start of every Byte page.
// 64 single-byte slots follow it.
type bytePageDescriptor struct {
	NextBytePage RealIndex
	Occupancy    uint64 // bit k set iff slot k is allocated
}

func (d bytePageDescriptor) encode(b []byte) {
	_ = b[bytePageDescriptorSize-1]
	putUint64LE(b[0:8], uint64(d.NextBytePage))
	putUint64LE(b[8:16], d.Occupancy)
}

func decodeBytePageDescriptor(b []byte) bytePageDescriptor {
	_ = b[bytePageDescriptorSize-1]
	return bytePageDescriptor{
		NextBytePage: RealIndex(getUint64LE(b[0:8])),
		Occupancy:    getUint64LE(b[8:16]),
	}
}

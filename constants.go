package binomdb

// RealIndex is a byte offset into the backing file.
type RealIndex uint64

// VirtualIndex is a stable logical id within one of the three index spaces
// (node, heap, byte). It survives page appends: once assigned, a virtual
// index keeps naming the same slot for the life of the database.
type VirtualIndex uint64

// Format constants identifying a valid binomdb file.
const (
	// fileMagic identifies binomdb files.
	fileMagic uint64 = 0x42696e4f4d444200

	// formatVersion is the on-disk layout version.
	formatVersion uint32 = 1
)

// Slot counts are fixed by the format, not configurable: a Node page always
// holds 64 descriptor slots and a Byte page always holds 64 byte slots.
const (
	nodeSlotsPerPage = 64
	byteSlotsPerPage = 64
)

// Page size bounds and defaults for the heap chain. Node and Byte pages have
// a fixed payload (64 slots) so only the heap page size is configurable.
const (
	// MinHeapPageSize is the smallest heap page (descriptor + payload) allowed.
	MinHeapPageSize = 256

	// MaxHeapPageSize is the largest heap page allowed.
	MaxHeapPageSize = 1 << 24

	// DefaultHeapPageSize matches one native 4K disk block.
	DefaultHeapPageSize = 4096
)

// invalidReal marks the absence of a next page in a chain, and is the value
// stored in a fresh header's three chain pointers.
const invalidReal RealIndex = 0

// invalidVirtual marks "no value" for optional virtual-index fields.
const invalidVirtual VirtualIndex = ^VirtualIndex(0)

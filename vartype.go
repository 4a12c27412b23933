package binomdb

// VarType tags the payload named by a NodeDescriptor. It mirrors the closed
// set of variant kinds the value-model layer defines above this package;
// this package only ever inspects the coarse container/primitive split.
type VarType uint16

const (
	// TypeEnd marks an unused slot (an empty root, or a freed node that a
	// caller must not read).
	TypeEnd VarType = iota

	TypeNull
	TypeBool

	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64

	TypeBitArray

	TypeBufferArrayU8
	TypeBufferArrayU16
	TypeBufferArrayU32
	TypeBufferArrayU64

	TypeArray
	TypeObject
)

// IsContainer reports whether a node of this type owns a heap region named
// by (descriptor.Index, descriptor.Size). Primitive types, including
// TypeBitArray, carry their value inline or reference a byte-page slot
// instead: bit_array is not heap-owning in the original allocator (its
// container-class dispatch only ever calls allocBlock for buffer_array,
// array and object), so it is excluded here too.
func (t VarType) IsContainer() bool {
	switch t {
	case TypeBufferArrayU8, TypeBufferArrayU16, TypeBufferArrayU32, TypeBufferArrayU64,
		TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// Valid reports whether t is one of the known tags.
func (t VarType) Valid() bool {
	return t <= TypeObject
}

func (t VarType) String() string {
	switch t {
	case TypeEnd:
		return "end"
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeBitArray:
		return "bit_array"
	case TypeBufferArrayU8:
		return "u8_array"
	case TypeBufferArrayU16:
		return "u16_array"
	case TypeBufferArrayU32:
		return "u32_array"
	case TypeBufferArrayU64:
		return "u64_array"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

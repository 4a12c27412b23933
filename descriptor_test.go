package binomdb

import "testing"

func TestNodeDescriptorRoundTrip(t *testing.T) {
	want := NodeDescriptor{Type: TypeArray, Size: 0x1122334455, Index: VirtualIndex(0xAABBCCDD)}
	buf := make([]byte, nodeDescriptorSize)
	want.encode(buf)
	got := decodeNodeDescriptor(buf)
	if got != want {
		t.Fatalf("decode(encode(%+v)) = %+v", want, got)
	}
}

func TestEmptyNodeDescriptorIsEnd(t *testing.T) {
	if emptyNodeDescriptor.Type != TypeEnd {
		t.Fatalf("emptyNodeDescriptor.Type = %v, want TypeEnd", emptyNodeDescriptor.Type)
	}
	if emptyNodeDescriptor.Type.IsContainer() {
		t.Fatal("an empty slot must never read as a container")
	}
}

func TestNodePageDescriptorRoundTrip(t *testing.T) {
	want := nodePageDescriptor{NextNodePage: RealIndex(4096), NodeMap: 0xF0F0F0F0F0F0F0F0}
	buf := make([]byte, nodePageDescriptorSize)
	want.encode(buf)
	got := decodeNodePageDescriptor(buf)
	if got != want {
		t.Fatalf("decode(encode(%+v)) = %+v", want, got)
	}
}

func TestHeapPageDescriptorRoundTrip(t *testing.T) {
	want := heapPageDescriptor{NextHeapPage: RealIndex(8192)}
	buf := make([]byte, heapPageDescriptorSize)
	want.encode(buf)
	got := decodeHeapPageDescriptor(buf)
	if got != want {
		t.Fatalf("decode(encode(%+v)) = %+v", want, got)
	}
}

func TestBytePageDescriptorRoundTrip(t *testing.T) {
	want := bytePageDescriptor{NextBytePage: RealIndex(123), Occupancy: 0x1}
	buf := make([]byte, bytePageDescriptorSize)
	want.encode(buf)
	got := decodeBytePageDescriptor(buf)
	if got != want {
		t.Fatalf("decode(encode(%+v)) = %+v", want, got)
	}
}

func TestHeapPayloadMatchesDefaultPageSize(t *testing.T) {
	// Worked example from the allocator design: a 4096-byte heap page with a
	// 16-byte descriptor leaves exactly 4080 bytes of payload.
	payload := DefaultHeapPageSize - heapPageDescriptorSize
	if payload != 4080 {
		t.Fatalf("default heap payload = %d, want 4080", payload)
	}
}

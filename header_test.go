package binomdb

import (
	"strings"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := newHeader(4096)
	h.RootNode = NodeDescriptor{Type: TypeObject, Size: 64, Index: 10}
	h.FirstNodePage = RealIndex(headerSize)
	h.FirstHeapPage = RealIndex(headerSize + 1000)
	h.FirstBytePage = RealIndex(headerSize + 2000)

	buf := make([]byte, headerSize)
	h.encode(buf)

	got, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("decode(encode(%+v)) = %+v", h, got)
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := decodeHeader(make([]byte, headerSize-1))
	if Code(err) != ErrCorrupted {
		t.Fatalf("Code(err) = %v, want ErrCorrupted", Code(err))
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	h := newHeader(4096)
	buf := make([]byte, headerSize)
	h.encode(buf)
	buf[0] ^= 0xFF

	_, err := decodeHeader(buf)
	if Code(err) != ErrCorrupted {
		t.Fatalf("Code(err) = %v, want ErrCorrupted", Code(err))
	}
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	h := newHeader(4096)
	h.Version = formatVersion + 1
	buf := make([]byte, headerSize)
	h.encode(buf)

	_, err := decodeHeader(buf)
	if Code(err) != ErrCorrupted {
		t.Fatalf("Code(err) = %v, want ErrCorrupted", Code(err))
	}
	if !strings.Contains(err.Error(), "format version") {
		t.Fatalf("error message %q does not mention the version mismatch", err.Error())
	}
}

func TestNewHeaderStartsWithEmptyRoot(t *testing.T) {
	h := newHeader(DefaultHeapPageSize)
	if h.RootNode.Type != TypeEnd {
		t.Fatalf("RootNode.Type = %v, want TypeEnd", h.RootNode.Type)
	}
	if h.Magic != fileMagic || h.Version != formatVersion {
		t.Fatal("newHeader did not stamp magic/version")
	}
}

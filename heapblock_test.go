package binomdb

import "testing"

func TestMemoryBlockListAddMemoryStartsEmpty(t *testing.T) {
	l := newMemoryBlockList()
	if l.capacity != 0 {
		t.Fatal("fresh list should have zero capacity")
	}
	l.addMemory(100)
	snap := l.snapshot()
	if len(snap) != 1 || snap[0] != (Block{Index: 0, Size: 100, Used: false}) {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestMemoryBlockListAddMemoryExtendsTrailingFreeBlock(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)
	l.addMemory(50)
	snap := l.snapshot()
	if len(snap) != 1 || snap[0].Size != 150 {
		t.Fatalf("expected a single 150-byte free block, got %+v", snap)
	}
}

func TestMemoryBlockListAllocSplitsAndFirstFits(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)

	b, ok := l.alloc(30)
	if !ok {
		t.Fatal("alloc(30) should succeed")
	}
	if b.Index != 0 || b.Size != 30 || !b.Used {
		t.Fatalf("alloc(30) = %+v", b)
	}

	snap := l.snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected a split into 2 blocks, got %+v", snap)
	}
	if snap[0] != (Block{Index: 0, Size: 30, Used: true}) {
		t.Fatalf("first block = %+v", snap[0])
	}
	if snap[1] != (Block{Index: 30, Size: 70, Used: false}) {
		t.Fatalf("second block = %+v", snap[1])
	}
}

func TestMemoryBlockListTilingInvariant(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(200)
	l.alloc(10)
	l.alloc(20)
	l.alloc(5)

	snap := l.snapshot()
	var cursor VirtualIndex
	for _, b := range snap {
		if b.Index != cursor {
			t.Fatalf("gap in tiling: block %+v does not start at expected %d", b, cursor)
		}
		cursor += VirtualIndex(b.Size)
	}
	if uint64(cursor) != l.capacity {
		t.Fatalf("tiling does not cover full capacity: got %d, want %d", cursor, l.capacity)
	}
}

func TestMemoryBlockListAllocFailsWhenNoBlockFits(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(10)
	if _, ok := l.alloc(11); ok {
		t.Fatal("alloc should fail when no free block is large enough")
	}
}

func TestMemoryBlockListFreeCoalescesBothDirections(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(300)
	a, _ := l.alloc(100)
	b, _ := l.alloc(100)
	c, _ := l.alloc(100)

	l.free(a.Index)
	l.free(c.Index)
	l.free(b.Index)

	snap := l.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected freeing the middle block to merge it with both free neighbours into one block, got %+v", snap)
	}
	if snap[0] != (Block{Index: 0, Size: 300, Used: false}) {
		t.Fatalf("coalesced block = %+v", snap[0])
	}
}

func TestMemoryBlockListFreeIsNoOpForUnknownIndex(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)
	if l.free(VirtualIndex(999)) {
		t.Fatal("free on an index that does not start a block should report false")
	}
}

func TestMemoryBlockListAllocAtExactFit(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)

	b, ok := l.allocAt(0, 40)
	if !ok || b.Index != 0 || b.Size != 40 {
		t.Fatalf("allocAt(0, 40) = %+v, %v", b, ok)
	}

	b2, ok := l.allocAt(40, 60)
	if !ok || b2.Index != 40 || b2.Size != 60 {
		t.Fatalf("allocAt(40, 60) = %+v, %v", b2, ok)
	}
}

func TestMemoryBlockListAllocAtRejectsOverlap(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)
	l.allocAt(0, 50)

	if _, ok := l.allocAt(10, 10); ok {
		t.Fatal("allocAt should refuse a range inside an already-used block")
	}
}

func TestMemoryBlockListAllocAtRejectsOverrun(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)

	if _, ok := l.allocAt(50, 1000); ok {
		t.Fatal("allocAt should refuse a size that overruns the covering free block")
	}
}

func TestMemoryBlockListAllocAtRejectsOutOfCapacity(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)

	if _, ok := l.allocAt(200, 10); ok {
		t.Fatal("allocAt should refuse a range with no covering block at all")
	}
}

func TestMemoryBlockListZeroSizeAllocRoundTrips(t *testing.T) {
	l := newMemoryBlockList()
	l.addMemory(100)

	b, ok := l.alloc(0)
	if !ok {
		t.Fatal("alloc(0) should succeed")
	}
	if b.Size != 0 || !b.Used {
		t.Fatalf("alloc(0) = %+v", b)
	}

	if !l.free(b.Index) {
		t.Fatal("freeing a zero-size block should succeed")
	}
	snap := l.snapshot()
	if len(snap) != 1 || snap[0] != (Block{Index: 0, Size: 100, Used: false}) {
		t.Fatalf("after freeing the zero-size block the heap should be one free run again, got %+v", snap)
	}
}

func TestMemoryBlockListRecoveryReplay(t *testing.T) {
	// Simulates recovery: each heap page's payload is folded in via
	// addMemory in chain order, then container ownership is reconstructed
	// with allocAt, in the order containers were discovered on disk.
	l := newMemoryBlockList()
	l.addMemory(4080)
	l.addMemory(4080)

	if _, ok := l.allocAt(0, 100); !ok {
		t.Fatal("allocAt(0, 100) should succeed against the freshly merged free run")
	}
	if _, ok := l.allocAt(4000, 160); !ok {
		t.Fatal("allocAt(4000, 160) should succeed, spanning what used to be a page boundary")
	}

	snap := l.snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected used/free/used/free, got %+v", snap)
	}
	if snap[0] != (Block{Index: 0, Size: 100, Used: true}) {
		t.Fatalf("first block = %+v", snap[0])
	}
	if snap[2] != (Block{Index: 4000, Size: 160, Used: true}) {
		t.Fatalf("second allocation = %+v", snap[2])
	}
}

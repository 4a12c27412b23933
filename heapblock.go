package binomdb

// memoryBlock is one maximal run of heap bytes in a single free/used state.
// Blocks are held in a slab (memoryBlockList.blocks) and linked by slab
// index rather than pointer, so coalescing never leaves a dangling Go
// pointer and freed slots are recycled instead of garbage-collected.
type memoryBlock struct {
	index VirtualIndex
	size  uint64
	used  bool
	prev  int32 // slab index, -1 if none
	next  int32 // slab index, -1 if none
}

// Block is the externally visible snapshot of a memoryBlock returned by the
// allocator entry points.
type Block struct {
	Index VirtualIndex
	Size  uint64
	Used  bool
}

// memoryBlockList is the heap allocator: a doubly-linked list of blocks
// tiling [0, capacity) with no gaps, where adjacent blocks always differ in
// Used. alloc is first-fit; free always coalesces eagerly with both
// neighbours.
type memoryBlockList struct {
	blocks    []memoryBlock
	freeSlots []int32
	head      int32
	tail      int32
	capacity  uint64
}

func newMemoryBlockList() *memoryBlockList {
	return &memoryBlockList{head: -1, tail: -1}
}

func (l *memoryBlockList) newSlot(b memoryBlock) int32 {
	if n := len(l.freeSlots); n > 0 {
		idx := l.freeSlots[n-1]
		l.freeSlots = l.freeSlots[:n-1]
		l.blocks[idx] = b
		return idx
	}
	l.blocks = append(l.blocks, b)
	return int32(len(l.blocks) - 1)
}

func (l *memoryBlockList) deleteSlot(idx int32) {
	l.freeSlots = append(l.freeSlots, idx)
}

func (l *memoryBlockList) blockAt(idx int32) Block {
	b := l.blocks[idx]
	return Block{Index: b.index, Size: b.size, Used: b.used}
}

// addMemory extends the address space by size bytes. If the tail block is
// free it is grown in place; otherwise a new free block is appended. This
// is how recovery turns a chain of heap pages back into one contiguous
// address space: replaying addMemory once per page, in chain order, merges
// consecutive free payloads into a single block automatically.
func (l *memoryBlockList) addMemory(size uint64) {
	if size == 0 {
		return
	}
	l.capacity += size
	if l.tail < 0 {
		idx := l.newSlot(memoryBlock{index: 0, size: size, used: false, prev: -1, next: -1})
		l.head = idx
		l.tail = idx
		return
	}
	tailIdx := l.tail
	if !l.blocks[tailIdx].used {
		l.blocks[tailIdx].size += size
		return
	}
	newIndex := l.blocks[tailIdx].index + VirtualIndex(l.blocks[tailIdx].size)
	newIdx := l.newSlot(memoryBlock{index: newIndex, size: size, used: false, prev: tailIdx, next: -1})
	l.blocks[tailIdx].next = newIdx
	l.tail = newIdx
}

// split carves a k-byte head off the block at idx, leaving the remainder as
// a new block of the same used state. 0 <= k < blocks[idx].size must hold;
// k == 0 leaves a zero-size head block at the same index, which is how a
// zero-size allocation is represented. Returns the slab index of the new (right-hand) block.
func (l *memoryBlockList) split(idx int32, k uint64) int32 {
	b := l.blocks[idx]
	newIdx := l.newSlot(memoryBlock{
		index: b.index + VirtualIndex(k),
		size:  b.size - k,
		used:  b.used,
		prev:  idx,
		next:  b.next,
	})
	if b.next >= 0 {
		l.blocks[b.next].prev = newIdx
	}
	l.blocks[idx].next = newIdx
	l.blocks[idx].size = k
	if l.tail == idx {
		l.tail = newIdx
	}
	return newIdx
}

// markUsed splits off an exact-size head if the block is larger than
// needed, then marks it used.
func (l *memoryBlockList) markUsed(idx int32, size uint64) int32 {
	if size != l.blocks[idx].size {
		l.split(idx, size)
	}
	l.blocks[idx].used = true
	return idx
}

// alloc performs first-fit allocation, returning the now-used block. The
// second return value is false if no free block is large enough; the
// caller (the controller) must grow the heap and retry.
func (l *memoryBlockList) alloc(size uint64) (Block, bool) {
	for idx := l.head; idx >= 0; idx = l.blocks[idx].next {
		if !l.blocks[idx].used && l.blocks[idx].size >= size {
			return l.blockAt(l.markUsed(idx, size)), true
		}
	}
	return Block{}, false
}

// allocAt allocates the exact range [index, index+size), splitting whatever
// free block currently covers it. Used only during open-time recovery to
// reconstruct ownership of container nodes read from disk. Returns false if
// no block covers the range, the covering block is already used, or size
// overruns the covering block — any of which means the on-disk state is
// inconsistent.
func (l *memoryBlockList) allocAt(index VirtualIndex, size uint64) (Block, bool) {
	for idx := l.head; idx >= 0; idx = l.blocks[idx].next {
		b := l.blocks[idx]
		if index < b.index || index >= b.index+VirtualIndex(b.size) {
			continue
		}
		if b.used {
			return Block{}, false
		}
		offset := uint64(index - b.index)
		if size > b.size-offset {
			return Block{}, false
		}
		target := idx
		if offset != 0 {
			target = l.split(idx, offset)
		}
		return l.blockAt(l.markUsed(target, size)), true
	}
	return Block{}, false
}

// free marks the block starting at index free, then coalesces it with any
// free neighbours in both directions. A no-op if no block starts at index.
func (l *memoryBlockList) free(index VirtualIndex) bool {
	for idx := l.head; idx >= 0; idx = l.blocks[idx].next {
		if l.blocks[idx].index != index {
			continue
		}
		l.blocks[idx].used = false
		l.coalesceForward(idx)
		l.coalesceBackward(idx)
		return true
	}
	return false
}

func (l *memoryBlockList) coalesceForward(idx int32) {
	for {
		nextIdx := l.blocks[idx].next
		if nextIdx < 0 || l.blocks[nextIdx].used {
			return
		}
		l.blocks[idx].size += l.blocks[nextIdx].size
		l.blocks[idx].next = l.blocks[nextIdx].next
		if l.blocks[nextIdx].next >= 0 {
			l.blocks[l.blocks[nextIdx].next].prev = idx
		}
		if l.tail == nextIdx {
			l.tail = idx
		}
		l.deleteSlot(nextIdx)
	}
}

func (l *memoryBlockList) coalesceBackward(idx int32) {
	for {
		prevIdx := l.blocks[idx].prev
		if prevIdx < 0 || l.blocks[prevIdx].used {
			return
		}
		l.blocks[prevIdx].size += l.blocks[idx].size
		l.blocks[prevIdx].next = l.blocks[idx].next
		if l.blocks[idx].next >= 0 {
			l.blocks[l.blocks[idx].next].prev = prevIdx
		}
		if l.tail == idx {
			l.tail = prevIdx
		}
		l.deleteSlot(idx)
		idx = prevIdx
	}
}

// snapshot returns the blocks in index order, for tests and diagnostics.
func (l *memoryBlockList) snapshot() []Block {
	out := make([]Block, 0, len(l.blocks)-len(l.freeSlots))
	for idx := l.head; idx >= 0; idx = l.blocks[idx].next {
		out = append(out, l.blockAt(idx))
	}
	return out
}

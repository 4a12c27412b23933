package binomdb

import (
	"errors"
	"math/bits"
	"sync"

	"github.com/binomdb/binomdb/internal/vfile"
)

// Controller is the file virtual memory manager: it owns the three page
// chains (Node, Heap, Byte), the heap block allocator, and the header, and
// is the only thing in this package that touches the backing file. Every
// exported method takes the same process-wide mutex, per the concurrency
// model this package implements: callers needing finer-grained locking
// (a per-node reader/writer table, for instance) build it on top.
type Controller struct {
	mu sync.Mutex

	file *vfile.File
	path string

	heapPageSizeWanted uint32

	header dbHeader

	heapPayload uint64

	nodePages *pageList[nodePageDescriptor]
	heapPages *pageList[heapPageDescriptor]
	bytePages *pageList[bytePageDescriptor]

	heap *memoryBlockList
}

// NewController returns an unopened Controller. Call SetHeapPageSize, if
// needed, before Open.
func NewController() *Controller {
	return &Controller{}
}

// SetHeapPageSize fixes the heap page size a fresh database is created
// with. It has no effect when opening an existing file, whose stored page
// size always wins. Must be called before Open.
func (c *Controller) SetHeapPageSize(size uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		return NewError(ErrInvalid)
	}
	if size < MinHeapPageSize || size > MaxHeapPageSize || size <= heapPageDescriptorSize {
		return NewError(ErrInvalid)
	}
	c.heapPageSizeWanted = size
	return nil
}

// Open opens path, creating and initializing it if it does not exist or is
// empty, and otherwise replaying its page chains and reconstructing heap
// ownership before returning.
func (c *Controller) Open(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		return NewError(ErrInvalid)
	}

	f, wasEmpty, err := vfile.Open(path)
	if err != nil {
		return wrapIOErr(err)
	}
	c.file = f
	c.path = path

	c.nodePages = &pageList[nodePageDescriptor]{}
	c.heapPages = &pageList[heapPageDescriptor]{}
	c.bytePages = &pageList[bytePageDescriptor]{}
	c.heap = newMemoryBlockList()

	if wasEmpty {
		return c.initFresh()
	}
	return c.recover()
}

func (c *Controller) initFresh() error {
	pageSize := c.heapPageSizeWanted
	if pageSize == 0 {
		pageSize = DefaultHeapPageSize
	}
	c.header = newHeader(pageSize)
	c.heapPayload = uint64(pageSize) - heapPageDescriptorSize

	if _, err := c.file.Append(headerSize); err != nil {
		c.abort()
		return wrapIOErr(err)
	}
	buf := make([]byte, headerSize)
	c.header.encode(buf)
	if err := c.file.Write(0, buf); err != nil {
		c.abort()
		return wrapIOErr(err)
	}
	return nil
}

func (c *Controller) recover() error {
	if c.file.Size() < headerSize {
		c.abort()
		return NewError(ErrCorrupted)
	}
	hdrBuf := make([]byte, headerSize)
	if err := c.file.Read(0, hdrBuf); err != nil {
		c.abort()
		return wrapIOErr(err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		c.abort()
		return err
	}
	c.header = hdr
	c.heapPayload = uint64(hdr.HeapPageSize) - heapPageDescriptorSize

	if err := c.walkNodeChain(); err != nil {
		c.abort()
		return err
	}
	if err := c.walkHeapChain(); err != nil {
		c.abort()
		return err
	}
	if err := c.walkByteChain(); err != nil {
		c.abort()
		return err
	}
	if err := c.reconstructHeapOwnership(); err != nil {
		c.abort()
		return err
	}
	return nil
}

func (c *Controller) walkNodeChain() error {
	pos := c.header.FirstNodePage
	for pos != invalidReal {
		buf := make([]byte, nodePageDescriptorSize)
		if err := c.file.Read(uint64(pos), buf); err != nil {
			return wrapIOErr(err)
		}
		d := decodeNodePageDescriptor(buf)
		c.nodePages.insertPage(pos, d)
		pos = d.NextNodePage
	}
	return nil
}

func (c *Controller) walkHeapChain() error {
	pos := c.header.FirstHeapPage
	for pos != invalidReal {
		buf := make([]byte, heapPageDescriptorSize)
		if err := c.file.Read(uint64(pos), buf); err != nil {
			return wrapIOErr(err)
		}
		d := decodeHeapPageDescriptor(buf)
		c.heapPages.insertPage(pos, d)
		c.heap.addMemory(c.heapPayload)
		pos = d.NextHeapPage
	}
	return nil
}

func (c *Controller) walkByteChain() error {
	pos := c.header.FirstBytePage
	for pos != invalidReal {
		buf := make([]byte, bytePageDescriptorSize)
		if err := c.file.Read(uint64(pos), buf); err != nil {
			return wrapIOErr(err)
		}
		d := decodeBytePageDescriptor(buf)
		c.bytePages.insertPage(pos, d)
		pos = d.NextBytePage
	}
	return nil
}

// reconstructHeapOwnership replays every container-typed node descriptor
// found on disk against the heap block list assembled by walkHeapChain, so
// that after recovery the heap's used/free tiling matches what it was
// before the database was last closed. Any descriptor whose (index, size)
// does not cleanly carve out of the free space it claims means the file was
// corrupted or written by a version with a different layout; either way
// it's fatal, not something to paper over.
func (c *Controller) reconstructHeapOwnership() error {
	if c.header.RootNode.Type.IsContainer() {
		if _, ok := c.heap.allocAt(c.header.RootNode.Index, c.header.RootNode.Size); !ok {
			return NewError(ErrInconsistentOnDisk)
		}
	}

	for pageIdx := 0; pageIdx < c.nodePages.len(); pageIdx++ {
		entry := c.nodePages.at(pageIdx)
		nodeMap := entry.Descriptor.NodeMap
		pageReal := entry.Index
		for slot := 0; slot < nodeSlotsPerPage; slot++ {
			if nodeMap&(uint64(1)<<uint(slot)) == 0 {
				continue
			}
			real := uint64(pageReal) + nodePageDescriptorSize + uint64(slot)*nodeDescriptorSize
			buf := make([]byte, nodeDescriptorSize)
			if err := c.file.Read(real, buf); err != nil {
				return wrapIOErr(err)
			}
			desc := decodeNodeDescriptor(buf)
			if !desc.Type.IsContainer() {
				continue
			}
			if _, ok := c.heap.allocAt(desc.Index, desc.Size); !ok {
				return NewError(ErrInconsistentOnDisk)
			}
		}
	}
	return nil
}

// abort tears down a failed Open so the Controller is left reusable.
func (c *Controller) abort() {
	c.file.Close()
	c.file = nil
	c.nodePages = nil
	c.heapPages = nil
	c.bytePages = nil
	c.heap = nil
}

// Close flushes and closes the backing file. The Controller may not be
// reused afterward.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	syncErr := c.file.Sync()
	closeErr := c.file.Close()
	c.file = nil
	if syncErr != nil {
		return wrapIOErr(syncErr)
	}
	if closeErr != nil {
		return wrapIOErr(closeErr)
	}
	return nil
}

func wrapIOErr(err error) error {
	switch {
	case errors.Is(err, vfile.ErrClosed):
		return WrapError(ErrIOClosed, err)
	case errors.Is(err, vfile.ErrNoSpace):
		return WrapError(ErrIONoSpace, err)
	default:
		return WrapError(ErrIOShort, err)
	}
}

// --- Node ---

// AllocNode stores desc in a free node slot and returns its virtual index.
// The very first node ever allocated in a fresh database is always index 0,
// the root, which lives inside the header rather than a Node page.
func (c *Controller) AllocNode(desc NodeDescriptor) (VirtualIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return 0, NewError(ErrInvalid)
	}

	if c.header.RootNode.Type == TypeEnd {
		if err := c.writeRootNode(desc); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if c.nodePages.isEmpty() {
		if err := c.createNodePage(); err != nil {
			return 0, err
		}
	}

	// Re-scan every existing page on each pass, including any just
	// appended by the previous pass, before deciding a new page is
	// needed. Checking "is there room" only once per page and only at
	// the end of the scan can miss a page created during the very scan
	// that needed it; scanning fully before growing avoids that.
	for {
		for pageIdx := 0; pageIdx < c.nodePages.len(); pageIdx++ {
			entry := c.nodePages.at(pageIdx)
			nodeMap := entry.Descriptor.NodeMap
			if nodeMap == ^uint64(0) {
				continue
			}
			slot := bits.TrailingZeros64(^nodeMap)
			real := uint64(entry.Index) + nodePageDescriptorSize + uint64(slot)*nodeDescriptorSize
			buf := make([]byte, nodeDescriptorSize)
			desc.encode(buf)
			if err := c.file.Write(real, buf); err != nil {
				return 0, wrapIOErr(err)
			}
			newMap := nodeMap | (uint64(1) << uint(slot))
			entry.Descriptor.NodeMap = newMap
			mapBuf := make([]byte, 8)
			putUint64LE(mapBuf, newMap)
			if err := c.file.Write(uint64(entry.Index)+8, mapBuf); err != nil {
				return 0, wrapIOErr(err)
			}
			return VirtualIndex(1 + pageIdx*nodeSlotsPerPage + slot), nil
		}
		if err := c.createNodePage(); err != nil {
			return 0, err
		}
	}
}

func (c *Controller) writeRootNode(desc NodeDescriptor) error {
	buf := make([]byte, nodeDescriptorSize)
	desc.encode(buf)
	if err := c.file.Write(headerRootNodeOff, buf); err != nil {
		return wrapIOErr(err)
	}
	c.header.RootNode = desc
	return nil
}

func (c *Controller) createNodePage() error {
	pageSize := uint64(nodePageDescriptorSize + nodeSlotsPerPage*nodeDescriptorSize)
	real, err := c.file.Append(pageSize)
	if err != nil {
		return wrapIOErr(err)
	}
	desc := nodePageDescriptor{NextNodePage: invalidReal, NodeMap: 0}
	buf := make([]byte, nodePageDescriptorSize)
	desc.encode(buf)
	if err := c.file.Write(real, buf); err != nil {
		return wrapIOErr(err)
	}

	if c.nodePages.isEmpty() {
		c.header.FirstNodePage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(headerFirstNodePageOff, ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	} else {
		last := c.nodePages.last()
		last.Descriptor.NextNodePage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(uint64(last.Index), ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	}
	c.nodePages.insertPage(RealIndex(real), desc)
	return nil
}

func (c *Controller) nodeRealOffset(v VirtualIndex) (uint64, error) {
	if v == 0 {
		return headerRootNodeOff, nil
	}
	idx := uint64(v-1) / nodeSlotsPerPage
	slot := uint64(v-1) % nodeSlotsPerPage
	if idx >= uint64(c.nodePages.len()) {
		return 0, NewError(ErrBadVirtualIndex)
	}
	entry := c.nodePages.at(int(idx))
	return uint64(entry.Index) + nodePageDescriptorSize + slot*nodeDescriptorSize, nil
}

// LoadNode reads the descriptor stored at v.
func (c *Controller) LoadNode(v VirtualIndex) (NodeDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NodeDescriptor{}, NewError(ErrInvalid)
	}
	real, err := c.nodeRealOffset(v)
	if err != nil {
		return NodeDescriptor{}, err
	}
	buf := make([]byte, nodeDescriptorSize)
	if err := c.file.Read(real, buf); err != nil {
		return NodeDescriptor{}, wrapIOErr(err)
	}
	return decodeNodeDescriptor(buf), nil
}

// SetNode overwrites the descriptor stored at v in place. The slot must
// already be allocated; SetNode does not change occupancy.
func (c *Controller) SetNode(v VirtualIndex, desc NodeDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	real, err := c.nodeRealOffset(v)
	if err != nil {
		return err
	}
	buf := make([]byte, nodeDescriptorSize)
	desc.encode(buf)
	if err := c.file.Write(real, buf); err != nil {
		return wrapIOErr(err)
	}
	if v == 0 {
		c.header.RootNode = desc
	}
	return nil
}

// FreeNode clears v's occupancy bit, or resets the header's root slot if v
// is 0. It does not touch any heap region the node owned; callers free the
// heap region first.
func (c *Controller) FreeNode(v VirtualIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	if v == 0 {
		return c.writeRootNode(emptyNodeDescriptor)
	}
	idx := uint64(v-1) / nodeSlotsPerPage
	slot := uint64(v-1) % nodeSlotsPerPage
	if idx >= uint64(c.nodePages.len()) {
		return NewError(ErrBadVirtualIndex)
	}
	entry := c.nodePages.at(int(idx))
	newMap := entry.Descriptor.NodeMap &^ (uint64(1) << uint(slot))
	entry.Descriptor.NodeMap = newMap
	buf := make([]byte, 8)
	putUint64LE(buf, newMap)
	if err := c.file.Write(uint64(entry.Index)+8, buf); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

// --- Heap ---

func (c *Controller) createHeapPage() error {
	real, err := c.file.Append(uint64(c.header.HeapPageSize))
	if err != nil {
		return wrapIOErr(err)
	}
	desc := heapPageDescriptor{NextHeapPage: invalidReal}
	buf := make([]byte, heapPageDescriptorSize)
	desc.encode(buf)
	if err := c.file.Write(real, buf); err != nil {
		return wrapIOErr(err)
	}

	if c.heapPages.isEmpty() {
		c.header.FirstHeapPage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(headerFirstHeapPageOff, ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	} else {
		last := c.heapPages.last()
		last.Descriptor.NextHeapPage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(uint64(last.Index), ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	}
	c.heapPages.insertPage(RealIndex(real), desc)
	c.heap.addMemory(c.heapPayload)
	return nil
}

// AllocHeap returns a virtual index naming a fresh size-byte heap region,
// growing the heap chain by as many pages as needed.
func (c *Controller) AllocHeap(size uint64) (VirtualIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return 0, NewError(ErrInvalid)
	}
	for {
		if block, ok := c.heap.alloc(size); ok {
			return block.Index, nil
		}
		if err := c.createHeapPage(); err != nil {
			return 0, err
		}
	}
}

// AllocHeapAt claims the exact range [index, index+size) from the heap
// block list. Used by recovery; also exposed for callers that persist
// their own heap layout externally. Fails with ErrInconsistentOnDisk if the
// range is not free space of at least that size.
func (c *Controller) AllocHeapAt(index VirtualIndex, size uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	if _, ok := c.heap.allocAt(index, size); !ok {
		return NewError(ErrInconsistentOnDisk)
	}
	return nil
}

// FreeHeap releases the region starting at index. A no-op if index does not
// name the start of a currently allocated region.
func (c *Controller) FreeHeap(index VirtualIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	c.heap.free(index)
	return nil
}

// heapIO copies buf to or from the heap payload starting at index, crossing
// page boundaries transparently.
func (c *Controller) heapIO(index VirtualIndex, buf []byte, write bool) error {
	remaining := buf
	cur := uint64(index)
	for len(remaining) > 0 {
		pageIdx := cur / c.heapPayload
		if pageIdx >= uint64(c.heapPages.len()) {
			return NewError(ErrBadVirtualIndex)
		}
		entry := c.heapPages.at(int(pageIdx))
		offsetInPage := cur % c.heapPayload
		avail := c.heapPayload - offsetInPage
		n := uint64(len(remaining))
		if n > avail {
			n = avail
		}
		real := uint64(entry.Index) + heapPageDescriptorSize + offsetInPage
		var err error
		if write {
			err = c.file.Write(real, remaining[:n])
		} else {
			err = c.file.Read(real, remaining[:n])
		}
		if err != nil {
			return wrapIOErr(err)
		}
		remaining = remaining[n:]
		cur += n
	}
	return nil
}

// ReadHeap copies len(out) bytes starting at index into out.
func (c *Controller) ReadHeap(index VirtualIndex, out []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	return c.heapIO(index, out, false)
}

// WriteHeap copies src to index.
func (c *Controller) WriteHeap(index VirtualIndex, src []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	return c.heapIO(index, src, true)
}

// --- Byte ---

func (c *Controller) createBytePage() error {
	pageSize := uint64(bytePageDescriptorSize + byteSlotsPerPage)
	real, err := c.file.Append(pageSize)
	if err != nil {
		return wrapIOErr(err)
	}
	desc := bytePageDescriptor{NextBytePage: invalidReal, Occupancy: 0}
	buf := make([]byte, bytePageDescriptorSize)
	desc.encode(buf)
	if err := c.file.Write(real, buf); err != nil {
		return wrapIOErr(err)
	}

	if c.bytePages.isEmpty() {
		c.header.FirstBytePage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(headerFirstBytePageOff, ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	} else {
		last := c.bytePages.last()
		last.Descriptor.NextBytePage = RealIndex(real)
		ptrBuf := make([]byte, 8)
		putUint64LE(ptrBuf, real)
		if err := c.file.Write(uint64(last.Index), ptrBuf); err != nil {
			return wrapIOErr(err)
		}
	}
	c.bytePages.insertPage(RealIndex(real), desc)
	return nil
}

// AllocByte claims one free byte slot and returns its virtual index.
func (c *Controller) AllocByte() (VirtualIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return 0, NewError(ErrInvalid)
	}
	for {
		for pageIdx := 0; pageIdx < c.bytePages.len(); pageIdx++ {
			entry := c.bytePages.at(pageIdx)
			occ := entry.Descriptor.Occupancy
			if occ == ^uint64(0) {
				continue
			}
			slot := bits.TrailingZeros64(^occ)
			newOcc := occ | (uint64(1) << uint(slot))
			entry.Descriptor.Occupancy = newOcc
			buf := make([]byte, 8)
			putUint64LE(buf, newOcc)
			if err := c.file.Write(uint64(entry.Index)+8, buf); err != nil {
				return 0, wrapIOErr(err)
			}
			return VirtualIndex(pageIdx*byteSlotsPerPage + slot), nil
		}
		if err := c.createBytePage(); err != nil {
			return 0, err
		}
	}
}

func (c *Controller) byteRealOffset(v VirtualIndex) (uint64, error) {
	idx := uint64(v) / byteSlotsPerPage
	slot := uint64(v) % byteSlotsPerPage
	if idx >= uint64(c.bytePages.len()) {
		return 0, NewError(ErrBadVirtualIndex)
	}
	entry := c.bytePages.at(int(idx))
	return uint64(entry.Index) + bytePageDescriptorSize + slot, nil
}

// FreeByte clears v's occupancy bit. The stored byte value is left as-is;
// AllocByte does not clear it either, so it stays until a later WriteByte.
func (c *Controller) FreeByte(v VirtualIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	idx := uint64(v) / byteSlotsPerPage
	slot := uint64(v) % byteSlotsPerPage
	if idx >= uint64(c.bytePages.len()) {
		return NewError(ErrBadVirtualIndex)
	}
	entry := c.bytePages.at(int(idx))
	newOcc := entry.Descriptor.Occupancy &^ (uint64(1) << uint(slot))
	entry.Descriptor.Occupancy = newOcc
	buf := make([]byte, 8)
	putUint64LE(buf, newOcc)
	if err := c.file.Write(uint64(entry.Index)+8, buf); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

// ReadByte returns the byte stored at v.
func (c *Controller) ReadByte(v VirtualIndex) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return 0, NewError(ErrInvalid)
	}
	real, err := c.byteRealOffset(v)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if err := c.file.Read(real, buf); err != nil {
		return 0, wrapIOErr(err)
	}
	return buf[0], nil
}

// WriteByte stores value at v.
func (c *Controller) WriteByte(v VirtualIndex, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return NewError(ErrInvalid)
	}
	real, err := c.byteRealOffset(v)
	if err != nil {
		return err
	}
	if err := c.file.Write(real, []byte{value}); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

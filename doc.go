// Package binomdb implements the file virtual memory manager of an
// embedded, file-backed hierarchical storage engine: a paged allocator that
// maps stable 64-bit virtual indices onto byte offsets in a single backing
// file, and the Node, Heap and Byte allocators built on top of it.
//
// A Controller owns one open file. Node allocates fixed-size descriptor
// slots (one of which, index 0, is the root and lives in the file header),
// Heap allocates variable-size byte regions with first-fit placement and
// eager coalescing on free, and Byte allocates single-byte slots. All three
// are independent page chains threaded through the same file; nothing
// above this package (the value model, the query layer, per-node locking)
// is this package's concern.
//
// Basic usage:
//
//	c := binomdb.NewController()
//	if err := c.Open("/path/to/db.binom"); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	v, err := c.AllocHeap(128)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.WriteHeap(v, payload); err != nil {
//	    log.Fatal(err)
//	}
package binomdb

// Package mmap backs the database file with a single shared memory mapping.
// vfile opens one Map over the whole file and keeps it aligned with the
// file's length by calling Remap each time the controller appends a node,
// heap, or byte page; Map itself knows nothing about page layout, only
// about a flat byte range and its current length.
package mmap

// Map is a memory-mapped region of a file. Its fields are unexported and
// only ever touched by the platform-specific New/Remap/Close in this
// package; vfile only ever calls Data, Size, and the lifecycle methods.
type Map struct {
	data     []byte
	fd       int
	size     int64
	capacity int64
	writable bool
	handle   uintptr // Windows file-mapping handle, zero elsewhere
	mapping  uintptr // Windows view handle, zero elsewhere
}

// Data returns the mapped bytes backing the database file. The slice is
// invalidated by Close, and by any Remap that moves the mapping rather than
// growing it in place; callers must re-fetch Data after a Remap call.
func (m *Map) Data() []byte {
	return m.data
}

// Size returns the mapping's current length in bytes, matching the backing
// file's length as of New or the last successful Remap.
func (m *Map) Size() int64 {
	return m.size
}

// Error reports a failure from an underlying mmap, munmap, mremap, or msync
// system call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "mmap: " + e.Op + ": " + e.Err.Error()
	}
	return "mmap: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidSize is returned by New or Remap for a zero or negative
	// length, which a page-chain append should never produce.
	ErrInvalidSize = &Error{Op: "invalid size"}

	// ErrNotMapped is returned by Sync and Remap when called after Close.
	ErrNotMapped = &Error{Op: "not mapped"}
)

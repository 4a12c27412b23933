// Package vfile implements the random-access, append-only file adapter the
// controller builds its page chains on: fixed-size reads and writes at byte
// offsets, and a single append primitive that is the only way the backing
// file grows. It is the sole collaborator allowed to touch file size.
package vfile

import (
	"errors"
	"os"
	"sync"

	"github.com/binomdb/binomdb/mmap"
)

// Sentinel errors the caller (the controller) maps onto its own ErrorCode
// values. vfile itself is agnostic to the controller's error taxonomy.
var (
	ErrShort   = errors.New("vfile: short read or write")
	ErrClosed  = errors.New("vfile: file adapter is closed")
	ErrNoSpace = errors.New("vfile: unable to grow file")
)

// File is a random-access file backed by a shared memory mapping. Reads and
// writes operate directly on the mapped bytes; growth truncates the
// underlying file and remaps. All access beyond what the OS page cache
// already serializes is the caller's responsibility — File has no locking
// semantics of its own beyond guarding its own size/mapping bookkeeping.
type File struct {
	mu     sync.Mutex
	file   *os.File
	mapped *mmap.Map
	size   int64
	closed bool
}

// Open opens or creates path for read/write access. wasEmpty reports
// whether the file had zero length before this call, which the caller uses
// to decide whether to initialize a fresh header.
func Open(path string) (f *File, wasEmpty bool, err error) {
	osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, err
	}

	fi, err := osFile.Stat()
	if err != nil {
		osFile.Close()
		return nil, false, err
	}

	f = &File{file: osFile, size: fi.Size()}
	if fi.Size() == 0 {
		return f, true, nil
	}

	m, err := mmap.New(int(osFile.Fd()), 0, int(fi.Size()), true)
	if err != nil {
		osFile.Close()
		return nil, false, err
	}
	f.mapped = m
	return f, false, nil
}

// Size returns the current file size in bytes.
func (f *File) Size() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(f.size)
}

// IsEmpty reports whether the file currently has zero length.
func (f *File) IsEmpty() bool {
	return f.Size() == 0
}

// Read copies exactly len(out) bytes starting at offset into out.
func (f *File) Read(offset uint64, out []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	end := offset + uint64(len(out))
	if end > uint64(f.size) || f.mapped == nil {
		return ErrShort
	}
	copy(out, f.mapped.Data()[offset:end])
	return nil
}

// Write copies all of src to offset. Writing past the current end of file
// fails; callers must Append first to make room.
func (f *File) Write(offset uint64, src []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	end := offset + uint64(len(src))
	if end > uint64(f.size) || f.mapped == nil {
		return ErrShort
	}
	copy(f.mapped.Data()[offset:end], src)
	return nil
}

// Append extends the file by n bytes and returns the offset the new region
// starts at (the old end of file). It is the only primitive that grows the
// file; every page-chain append in the controller routes through it.
func (f *File) Append(n uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	oldSize := f.size
	newSize := oldSize + int64(n)

	if err := f.file.Truncate(newSize); err != nil {
		return 0, errors.Join(ErrNoSpace, err)
	}

	if f.mapped == nil {
		m, err := mmap.New(int(f.file.Fd()), 0, int(newSize), true)
		if err != nil {
			return 0, errors.Join(ErrNoSpace, err)
		}
		f.mapped = m
	} else if err := f.mapped.Remap(newSize); err != nil {
		return 0, errors.Join(ErrNoSpace, err)
	}

	f.size = newSize
	return uint64(oldSize), nil
}

// Sync flushes the mapping and the file to disk.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.mapped != nil {
		if err := f.mapped.Sync(); err != nil {
			return err
		}
	}
	return f.file.Sync()
}

// Close unmaps and closes the underlying file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	if f.mapped != nil {
		if err := f.mapped.Close(); err != nil {
			firstErr = err
		}
		f.mapped = nil
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

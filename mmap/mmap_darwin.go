//go:build darwin

package mmap

import "errors"

// tryMremap is not available on macOS: Darwin has no mremap syscall, so
// every page-chain growth on this platform falls through Remap's
// unmap/remap path.
func (m *Map) tryMremap(newSize int) ([]byte, error) {
	return nil, errors.New("mremap not available on darwin")
}

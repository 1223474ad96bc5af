//go:build linux || darwin || freebsd

package sysmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map returns a zeroed anonymous region of size bytes and a function that
// unmaps it.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("sysmem: invalid region size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("sysmem: mmap %d bytes: %w", size, err)
	}
	unmap := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return data, unmap, nil
}

// Discard tells the kernel the contents of b are no longer needed so the
// backing pages can be reclaimed. It is advisory; callers must still zero
// memory they hand out.
func Discard(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Madvise(b, unix.MADV_DONTNEED)
}

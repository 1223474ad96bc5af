//go:build !linux && !darwin && !freebsd && !windows

package sysmem

import "fmt"

// Map allocates the region on the Go heap when anonymous mappings are not
// available.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("sysmem: invalid region size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}

// Discard is a no-op for heap-backed regions.
func Discard(b []byte) error {
	return nil
}

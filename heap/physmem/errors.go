package physmem

import "errors"

var (
	// ErrNoPages indicates no free block of the requested order exists.
	ErrNoPages = errors.New("physmem: no free block of requested order")

	// ErrBadFree indicates a free of a PFN that is not an allocated block
	// head of the given order (double free or order mismatch).
	ErrBadFree = errors.New("physmem: free of unallocated block or wrong order")

	// ErrBadOrder indicates an order larger than the arena supports.
	ErrBadOrder = errors.New("physmem: order out of range")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("physmem: allocator closed")
)

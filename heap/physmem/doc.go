// Package physmem is the system page allocator underneath the heap pools.
//
// # Overview
//
// An Allocator manages a fixed arena of base pages (mapped with
// internal/sysmem) as a binary buddy system. Callers receive page frame
// numbers (PFN) for blocks of 2^order contiguous pages and give them back
// with the same order. The heap treats this allocator as "the system":
// allocating from it is the expensive path the pools exist to avoid.
//
// # Allocation Flags
//
//   - Zero: clear the block before returning it
//   - NoRetry: fail immediately instead of running direct reclaim
//   - NoWarn: do not log allocation failures
//
// # Direct Reclaim
//
// Registered Shrinkers are the memory-pressure signal. When an allocation
// without NoRetry finds no free block, the allocator drops its lock, asks
// every shrinker to release pages, and retries once.
//
// # Ownership Checks
//
// Every allocated block head is recorded with its order. Freeing a PFN that
// is not allocated, or with the wrong order, returns ErrBadFree instead of
// corrupting the free lists. Split converts an allocated block into
// individually freeable order-0 pages.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package physmem

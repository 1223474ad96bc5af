// Package system implements the tiered, pool-backed page heap.
//
// A Heap turns a byte-size request into a scatter list of power-of-two
// blocks. Each block comes from a per-(order, domain) pool when one is
// cached and from the system page allocator otherwise. Freed blocks return
// to their pool so that the next request of the same shape avoids the
// system allocator entirely.
//
// # Domains
//
// Every request belongs to exactly one domain: normal cached memory, normal
// uncached memory, or one secure VM. Each domain owns a pool set with one
// pool per configured order. Blocks never move between domains; secure
// blocks are handed to the VM through an ownership authority on first use
// and stay owned while pooled.
//
// # Allocation
//
// Allocate decomposes the page-aligned size greedily, largest order first,
// under a ceiling that only ever lowers. Fresh blocks and pooled blocks are
// collected separately and merged into one table ordered by non-increasing
// block size. Only the fresh blocks need cache maintenance, so they are
// also recorded in the buffer's sync table.
//
// Any failure releases every block taken so far: pooled blocks go back to
// their pools, fresh ones back to the system. Pool contents after a failed
// Allocate are the same as before it.
//
// # Reclaim
//
// A Heap implements physmem.Shrinker. Shrink walks orders largest first and
// releases pooled pages, oldest lowmem blocks first, while the number of
// pooled pages stays above the low-water mark. With nrToScan == 0 it only
// reports how much could be released.
//
// # Logging
//
// The heap logs through the slog.Logger in Config. Per-request debug lines
// are emitted only when PAGEHEAP_LOG_ALLOC is set in the environment.
package system

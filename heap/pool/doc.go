// Package pool provides the per-order free-block caches that sit in front of
// the system page allocator.
//
// # Overview
//
// A Pool caches freed blocks of exactly one order for one domain. A Set holds
// one Pool per entry of the order table for a domain (cached, uncached, or a
// secure VMID). Withdrawing from an empty pool falls back to a fresh system
// allocation using the pool's fetch policy; depositing appends to the free
// list; Shrink hands cached blocks back to the system.
//
// # Fetch Policy
//
// Pools above order 0 fetch with physmem.Zero|NoRetry|NoWarn: a large block
// is an optimization, so failing fast and letting the caller try the next
// smaller order beats stalling in reclaim. Order-0 pools fetch with Zero only.
// Cached blocks are handed back as they were deposited; the pool never zeroes.
//
// # Accounting
//
// Every pool of a heap shares one Counters value. Cached counts pages sitting
// in pool free lists and is updated under the pool lock at the moment a block
// is spliced in or out, so a concurrent reclaimer always sees an accurate
// figure without taking any pool lock.
//
// # Thread Safety
//
// Each Pool guards its free lists with its own mutex. The lock is never held
// across a call into the system allocator.
package pool

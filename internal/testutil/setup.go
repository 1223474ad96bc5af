// Package testutil provides page-arena fixtures shared by the heap tests.
package testutil

import (
	"testing"

	"github.com/joshuapare/pageheap/heap/physmem"
)

// ArenaOption adjusts the physmem.Config used by SetupArena.
type ArenaOption func(*physmem.Config)

// WithHighmem treats PFNs from start onward as highmem.
func WithHighmem(start physmem.PFN) ArenaOption {
	return func(c *physmem.Config) { c.HighmemStart = start }
}

// SetupArena creates a heap-backed page allocator of the given size. The
// allocator is closed when the test finishes.
//
// Example:
//
//	mem := testutil.SetupArena(t, 1024)
//	mem := testutil.SetupArena(t, 1024, testutil.WithHighmem(512))
func SetupArena(t testing.TB, pages int64, opts ...ArenaOption) *physmem.Allocator {
	t.Helper()

	cfg := physmem.Config{Pages: pages, HeapBacked: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	mem, err := physmem.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create arena of %d pages: %v", pages, err)
	}
	t.Cleanup(func() { _ = mem.Close() })
	return mem
}

// RequireBalanced fails the test unless every page of mem is accounted for
// as pooled, in use, or free.
func RequireBalanced(t testing.TB, mem *physmem.Allocator, pooled, inUse int64) {
	t.Helper()
	if got := pooled + inUse + mem.FreePages(); got != mem.TotalPages() {
		t.Fatalf("page accounting: pooled %d + in use %d + free %d = %d, want %d",
			pooled, inUse, mem.FreePages(), got, mem.TotalPages())
	}
}

// RequireZeroed fails the test unless every byte of b is zero.
func RequireZeroed(t testing.TB, b []byte) {
	t.Helper()
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d is %#x, want 0", i, v)
		}
	}
}

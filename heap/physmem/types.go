package physmem

import (
	"fmt"

	"github.com/joshuapare/pageheap/internal/format"
)

// PFN is a page frame number: the index of a base page within the arena.
type PFN uint64

// DefaultPhysBase is the physical address reported for PFN 0.
const DefaultPhysBase = 0x8000_0000

// Flags control how a block is fetched.
type Flags uint8

const (
	// Zero clears the block before it is returned.
	Zero Flags = 1 << iota
	// NoRetry fails instead of running direct reclaim.
	NoRetry
	// NoWarn suppresses the allocation-failure log line.
	NoWarn
)

func (f Flags) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&Zero != 0 {
		add("zero")
	}
	if f&NoRetry != 0 {
		add("noretry")
	}
	if f&NoWarn != 0 {
		add("nowarn")
	}
	if s == "" {
		return "none"
	}
	return s
}

// Hint describes the memory pressure that triggered a shrink.
type Hint struct {
	// Order is the block order whose allocation failed.
	Order uint
	// Highmem permits reclaiming highmem blocks.
	Highmem bool
	// Kswapd marks background reclaim; it also permits highmem.
	Kswapd bool
}

// AllowHighmem reports whether highmem blocks may be released under this hint.
func (h Hint) AllowHighmem() bool { return h.Highmem || h.Kswapd }

// Shrinker releases cached memory on request.
type Shrinker interface {
	// Shrink releases up to nrToScan pages and returns how many it released.
	// nrToScan == 0 asks how many could be released without releasing any.
	Shrink(hint Hint, nrToScan int) int
}

// Stats is a snapshot of allocator counters.
type Stats struct {
	TotalPages int64 `json:"total_pages"`
	FreePages  int64 `json:"free_pages"`
	Allocs     int64 `json:"allocs"`    // successful Alloc calls
	Frees      int64 `json:"frees"`     // successful Free calls
	Failures   int64 `json:"failures"`  // failed Alloc calls
	Splits     int64 `json:"splits"`    // Split calls
	Reclaims   int64 `json:"reclaims"`  // direct reclaim passes
	Reclaimed  int64 `json:"reclaimed"` // pages released by shrinkers during direct reclaim
}

func (s Stats) String() string {
	return fmt.Sprintf("physmem: %d/%d pages free (%s), allocs=%d frees=%d failures=%d",
		s.FreePages, s.TotalPages, formatBytes(format.PagesToBytes(s.FreePages)),
		s.Allocs, s.Frees, s.Failures)
}

func formatBytes(n int64) string {
	switch {
	case n >= format.GiB:
		return fmt.Sprintf("%.1f GiB", float64(n)/format.GiB)
	case n >= format.MiB:
		return fmt.Sprintf("%.1f MiB", float64(n)/format.MiB)
	case n >= format.KiB:
		return fmt.Sprintf("%.1f KiB", float64(n)/format.KiB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

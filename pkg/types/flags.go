package types

import "strings"

// Flags are per-request allocation flags.
type Flags uint32

const (
	// FlagCached requests CPU-cacheable memory. Requests without it are
	// served from the uncached pools.
	FlagCached Flags = 1 << iota

	// FlagPoolForceAlloc bypasses the pools entirely: every block is
	// allocated fresh and released to the system on free.
	FlagPoolForceAlloc
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f.Has(FlagCached) {
		parts = append(parts, "cached")
	}
	if f.Has(FlagPoolForceAlloc) {
		parts = append(parts, "force-alloc")
	}
	if rest := f &^ (FlagCached | FlagPoolForceAlloc); rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

package types

// ============================================================================
// Default heap limits
// ============================================================================
// These defaults size the pool working set for a device with a few GiB of
// RAM. Every one of them can be overridden through the heap configuration.

const (
	// DefaultMinPoolPages is the low-water mark: the reclaimer never
	// shrinks pooled pages below this count (200 MiB with 4 KiB pages).
	DefaultMinPoolPages = 51200

	// DefaultWarmFillPages is the warm-fill target for the cached pools
	// (400 MiB with 4 KiB pages). Uncached pools fill to twice this.
	DefaultWarmFillPages = 102400

	// DefaultBoostMinBytes is the smallest request eligible for a
	// fast-path tier (1 MiB).
	DefaultBoostMinBytes = 1 << 20

	// TotalRAMDivisor bounds a single request to TotalRAM/TotalRAMDivisor pages.
	TotalRAMDivisor = 2
)

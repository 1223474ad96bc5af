// Package format holds the page geometry shared by every layer of the heap:
// page size, order arithmetic, and byte/page conversions.
package format

const (
	// PageShift is log2 of the base page size.
	PageShift = 12

	// PageSize is the base page size in bytes (4 KiB).
	PageSize = 1 << PageShift

	// PageMask masks the in-page offset bits of a byte length.
	PageMask = PageSize - 1

	// MaxOrder is the largest block order any layer accepts.
	// A block of MaxOrder spans 2^MaxOrder pages (4 GiB with 4 KiB pages).
	MaxOrder = 20
)

// Sizes used when choosing fallback strategies.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

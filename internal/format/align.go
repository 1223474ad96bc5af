package format

import "github.com/joshuapare/pageheap/internal/buf"

// PageAlign returns n rounded up to the next page boundary.
//
// Example:
//
//	PageAlign(1)    = 4096
//	PageAlign(4096) = 4096
//	PageAlign(4097) = 8192
func PageAlign(n int64) int64 {
	return (n + PageMask) &^ PageMask
}

// PageAlignChecked is PageAlign that reports ok = false when rounding up
// would overflow.
func PageAlignChecked(n int64) (int64, bool) {
	end, ok := buf.AddOverflowSafe(n, PageMask)
	if !ok {
		return 0, false
	}
	return end &^ PageMask, true
}

// BytesToPages returns the number of pages needed to hold n bytes.
func BytesToPages(n int64) int64 {
	return PageAlign(n) >> PageShift
}

// BytesToPagesChecked is BytesToPages that reports ok = false on overflow.
func BytesToPagesChecked(n int64) (int64, bool) {
	aligned, ok := PageAlignChecked(n)
	return aligned >> PageShift, ok
}

// PagesToBytes converts a page count to bytes.
func PagesToBytes(pages int64) int64 {
	return pages << PageShift
}

// OrderPages returns the number of base pages in a block of the given order.
func OrderPages(order uint) int64 {
	return 1 << order
}

// OrderBytes returns the byte size of a block of the given order.
func OrderBytes(order uint) int64 {
	return PageSize << order
}

// HighBit returns the 1-based index of the most significant set bit of n,
// or 0 when n is 0.
//
// Example:
//
//	HighBit(1) = 1
//	HighBit(4) = 3
//	HighBit(5) = 3
func HighBit(n uint64) uint {
	var h uint
	for n != 0 {
		n >>= 1
		h++
	}
	return h
}

// OrderForPages returns the smallest order whose block covers pages.
//
// Example:
//
//	OrderForPages(1) = 0
//	OrderForPages(3) = 2
//	OrderForPages(4) = 2
func OrderForPages(pages int64) uint {
	if pages <= 1 {
		return 0
	}
	return HighBit(uint64(pages - 1))
}

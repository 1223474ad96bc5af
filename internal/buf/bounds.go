// Package buf holds overflow-checked arithmetic for sizes and offsets.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int64.
func AddOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow int64.
// Used for count * unit conversions such as pages to bytes.
func MulOverflowSafe(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > 0 && b > 0 {
		if a > math.MaxInt64/b {
			return 0, false
		}
	}
	if a < 0 && b < 0 {
		if a < math.MaxInt64/b {
			return 0, false
		}
	}
	// Mixed signs - check against MinInt64
	if a > 0 && b < 0 {
		if b < math.MinInt64/a {
			return 0, false
		}
	}
	if a < 0 && b > 0 {
		if a < math.MinInt64/b {
			return 0, false
		}
	}
	return a * b, true
}

// CheckSpan validates that count units of unitSize bytes fit in a region of
// limit bytes starting at offset. Returns the end offset if valid, or an
// error describing the specific failure (overflow or out of bounds).
//
//	end, err := buf.CheckSpan(int64(len(arena)), off, pages, format.PageSize)
//	if err != nil {
//	    return fmt.Errorf("range: %w", err)
//	}
func CheckSpan(limit, offset, count, unitSize int64) (int64, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if unitSize < 0 {
		return 0, fmt.Errorf("negative unit size: %d", unitSize)
	}

	size, ok := MulOverflowSafe(count, unitSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * unit=%d", count, unitSize)
	}
	end, ok := AddOverflowSafe(offset, size)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, size)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=%d > limit=%d", end, limit)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b). The
// result's capacity is clipped to its length.
func Slice(b []byte, off, n int64) ([]byte, bool) {
	if off < 0 || n < 0 || off > int64(len(b)) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > int64(len(b)) {
		return nil, false
	}
	return b[off:end:end], true
}

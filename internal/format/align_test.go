package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageAlign(t *testing.T) {
	cases := []struct {
		in, want int64
	}{
		{0, 0},
		{1, PageSize},
		{PageSize, PageSize},
		{PageSize + 1, 2 * PageSize},
		{272 * PageSize, 272 * PageSize},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PageAlign(tc.in), "PageAlign(%d)", tc.in)
	}
}

func TestBytesToPages(t *testing.T) {
	require.Equal(t, int64(0), BytesToPages(0))
	require.Equal(t, int64(1), BytesToPages(1))
	require.Equal(t, int64(2), BytesToPages(PageSize+1))
	require.Equal(t, int64(PageSize*3), PagesToBytes(3))
}

func TestCheckedAlignment(t *testing.T) {
	got, ok := PageAlignChecked(PageSize + 1)
	require.True(t, ok)
	require.Equal(t, int64(2*PageSize), got)

	pages, ok := BytesToPagesChecked(272*PageSize - 1)
	require.True(t, ok)
	require.Equal(t, int64(272), pages)

	_, ok = PageAlignChecked(math.MaxInt64)
	require.False(t, ok)
	_, ok = BytesToPagesChecked(math.MaxInt64 - PageMask + 1)
	require.False(t, ok)

	// The largest aligned value still rounds to itself.
	got, ok = PageAlignChecked(math.MaxInt64 &^ PageMask)
	require.True(t, ok)
	require.Equal(t, int64(math.MaxInt64&^PageMask), got)
}

func TestOrderForPages(t *testing.T) {
	cases := map[int64]uint{
		1:   0,
		2:   1,
		3:   2,
		4:   2,
		5:   3,
		256: 8,
		257: 9,
	}
	for pages, want := range cases {
		require.Equal(t, want, OrderForPages(pages), "pages=%d", pages)
	}
}

func TestOrderSizes(t *testing.T) {
	require.Equal(t, int64(16), OrderPages(4))
	require.Equal(t, int64(256*PageSize), OrderBytes(8))
	require.Equal(t, uint(0), HighBit(0))
	require.Equal(t, uint(3), HighBit(5))
}

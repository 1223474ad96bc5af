package sysmem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/internal/format"
)

func TestMapZeroedAndWritable(t *testing.T) {
	data, unmap, err := Map(4 * format.PageSize)
	require.NoError(t, err)
	require.Len(t, data, 4*format.PageSize)

	for _, b := range data {
		require.Zero(t, b)
	}
	data[0] = 0xAA
	data[len(data)-1] = 0x55
	require.Equal(t, byte(0xAA), data[0])

	require.NoError(t, Discard(data[:format.PageSize]))
	require.NoError(t, unmap())
	require.NoError(t, unmap(), "second unmap must be a no-op")
}

func TestMapRejectsEmpty(t *testing.T) {
	_, _, err := Map(0)
	require.Error(t, err)
}

func TestTotalRAMPages(t *testing.T) {
	pages, ok := TotalRAMPages()
	if !ok {
		t.Skip("total RAM not available on this platform")
	}
	require.Positive(t, pages)
}

package sgtable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/internal/format"
)

func TestTableAppendAndSpans(t *testing.T) {
	tbl := New(2)
	tbl.Append(Entry{PFN: 0, Addr: 0x8000_0000, Length: 256 * format.PageSize})
	tbl.Append(Entry{PFN: 256, Addr: 0x8010_0000, Length: 16 * format.PageSize})

	require.Equal(t, 2, tbl.Len())
	require.Equal(t, int64(272*format.PageSize), tbl.TotalLength())
	require.Equal(t, int64(16), tbl.At(1).Pages())

	spans := tbl.Spans()
	require.Len(t, spans, 2)
	require.Equal(t, uint64(0x8010_0000), spans[1].Addr)
	require.Equal(t, uint64(16*format.PageSize), spans[1].Len)
}

func TestTableEachStops(t *testing.T) {
	var tbl Table
	tbl.Append(Entry{Length: format.PageSize})
	tbl.Append(Entry{Length: format.PageSize})

	stop := errors.New("stop")
	seen := 0
	err := tbl.Each(func(i int, e Entry) error {
		seen++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, seen)
}

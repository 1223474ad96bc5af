package order

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/internal/format"
)

func TestNewRejectsBadTables(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	_, err = New(0, 4, 8)
	require.Error(t, err, "ascending table must be rejected")

	_, err = New(4, 4)
	require.Error(t, err, "duplicate order must be rejected")

	_, err = New(format.MaxOrder + 1)
	require.Error(t, err)
}

func TestTableAccessors(t *testing.T) {
	tbl := MustNew(8, 4, 0)
	require.Equal(t, 3, tbl.Len())
	require.Equal(t, Order(8), tbl.Max())
	require.Equal(t, Order(0), tbl.Min())
	require.Equal(t, 1, tbl.Index(4))
	require.True(t, tbl.Contains(0))
	require.False(t, tbl.Contains(2))
	require.Equal(t, "{8, 4, 0}", tbl.String())
	require.Equal(t, []Order{8, 4, 0}, tbl.Orders())
}

func TestIndexPanicsOnUnknownOrder(t *testing.T) {
	tbl := MustNew(8, 4, 0)
	require.Panics(t, func() { tbl.Index(5) })
	require.Panics(t, func() { tbl.Index(format.MaxOrder + 3) })
}

func TestLargest(t *testing.T) {
	tbl := MustNew(8, 4, 0)
	page := int64(format.PageSize)

	cases := []struct {
		name      string
		remaining int64
		ceiling   Order
		want      Order
		ok        bool
	}{
		{"exact large", 256 * page, 8, 8, true},
		{"large plus change", 272 * page, 8, 8, true},
		{"ceiling caps", 272 * page, 4, 4, true},
		{"below mid", 15 * page, 8, 0, true},
		{"sub-page", page - 1, 8, 0, false},
		{"ceiling below table", 16 * page, 3, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tbl.Largest(tc.remaining, tc.ceiling)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.want, got)
			}
		})
	}

	require.Equal(t, []Order{4, 0}, tbl.Fits(20*page, 8))
}

func TestDefault(t *testing.T) {
	tbl := Default()
	require.Equal(t, Order(9), tbl.Max())
	require.Equal(t, int64(2*format.MiB), tbl.Max().Bytes())
}

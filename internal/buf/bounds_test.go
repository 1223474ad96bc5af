package buf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddOverflowSafe(t *testing.T) {
	sum, ok := AddOverflowSafe(10, 5)
	require.True(t, ok)
	require.Equal(t, int64(15), sum)

	_, ok = AddOverflowSafe(math.MaxInt64, 1)
	require.False(t, ok, "adding to MaxInt64")
	_, ok = AddOverflowSafe(math.MinInt64, -1)
	require.False(t, ok, "subtracting from MinInt64")
}

func TestMulOverflowSafe(t *testing.T) {
	tests := []struct {
		a, b int64
		want int64
		ok   bool
	}{
		{0, math.MaxInt64, 0, true},
		{4096, 512, 2 << 20, true},
		{-3, 4, -12, true},
		{-3, -4, 12, true},
		{math.MaxInt64/2 + 1, 2, 0, false},
		{math.MinInt64, -1, 0, false},
		{math.MinInt64/2 - 1, 2, 0, false},
		{2, math.MinInt64/2 - 1, 0, false},
	}
	for _, tt := range tests {
		got, ok := MulOverflowSafe(tt.a, tt.b)
		require.Equal(t, tt.ok, ok, "%d*%d", tt.a, tt.b)
		if tt.ok {
			require.Equal(t, tt.want, got, "%d*%d", tt.a, tt.b)
		}
	}
}

func TestCheckSpan(t *testing.T) {
	end, err := CheckSpan(8192, 4096, 1, 4096)
	require.NoError(t, err)
	require.Equal(t, int64(8192), end)

	_, err = CheckSpan(8192, 4096, 2, 4096)
	require.ErrorContains(t, err, "bounds")
	_, err = CheckSpan(8192, -1, 1, 4096)
	require.ErrorContains(t, err, "negative offset")
	_, err = CheckSpan(math.MaxInt64, 0, math.MaxInt64, 2)
	require.ErrorContains(t, err, "overflow")
	_, err = CheckSpan(math.MaxInt64, math.MaxInt64-1, 1, 4096)
	require.ErrorContains(t, err, "overflow")
}

func TestSlice(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	got, ok := Slice(data, 1, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)
	require.Equal(t, 3, cap(got))

	_, ok = Slice(data, 4, 2)
	require.False(t, ok)
	_, ok = Slice(data, 2, math.MaxInt64)
	require.False(t, ok)
	_, ok = Slice(data, -1, 1)
	require.False(t, ok)
}

package contig

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/internal/testutil"
	"github.com/joshuapare/pageheap/pkg/types"
)

func newTestHeap(t *testing.T, pages int64) (*Heap, *physmem.Allocator, *physmem.CountingSyncer) {
	t.Helper()
	mem := testutil.SetupArena(t, pages)
	syncer := &physmem.CountingSyncer{}
	return New(mem, syncer), mem, syncer
}

func TestAllocateTrimsTail(t *testing.T) {
	h, mem, syncer := newTestHeap(t, 64)

	buf, err := h.Allocate(5*format.PageSize - 100)
	require.NoError(t, err)
	require.Equal(t, int64(5), buf.Pages())
	require.Equal(t, 1, buf.Table().Len())
	require.Equal(t, int64(5*format.PageSize), buf.Table().TotalLength())
	require.Equal(t, mem.Phys(buf.PFN()), buf.Table().At(0).Addr)
	require.Len(t, buf.Bytes(), 5*format.PageSize)

	// An order-3 block was taken; three tail pages went straight back.
	require.Equal(t, int64(59), mem.FreePages())
	require.Equal(t, int64(5), h.InUse())
	require.Equal(t, int64(1), syncer.Calls())
	require.Equal(t, int64(5*format.PageSize), syncer.Bytes())

	require.NoError(t, h.Free(buf))
	require.Equal(t, int64(64), mem.FreePages())
	require.Zero(t, h.InUse())
	require.ErrorIs(t, h.Free(buf), types.ErrBadFree)
}

func TestAllocateExactPowerOfTwo(t *testing.T) {
	h, mem, _ := newTestHeap(t, 64)

	buf, err := h.Allocate(16 * format.PageSize)
	require.NoError(t, err)
	require.Equal(t, int64(48), mem.FreePages())
	require.NoError(t, h.Free(buf))
	require.Equal(t, int64(64), mem.FreePages())
}

func TestAllocateErrors(t *testing.T) {
	h, mem, _ := newTestHeap(t, 64)

	_, err := h.Allocate(0)
	require.ErrorIs(t, err, types.ErrInvalidSize)

	_, err = h.Allocate(128 * format.PageSize)
	require.ErrorIs(t, err, types.ErrTooLarge)
	_, err = h.Allocate(math.MaxInt64)
	require.ErrorIs(t, err, types.ErrTooLarge)

	mem.FailAfter(0)
	_, err = h.Allocate(format.PageSize)
	require.ErrorIs(t, err, types.ErrNoMemory)
	require.ErrorIs(t, err, physmem.ErrNoPages)
	require.Equal(t, int64(64), mem.FreePages())
}

func TestBuffersAreZeroed(t *testing.T) {
	h, _, _ := newTestHeap(t, 64)

	buf, err := h.Allocate(3 * format.PageSize)
	require.NoError(t, err)
	mem := buf.Bytes()
	for i := range mem {
		mem[i] = 0xFF
	}
	require.NoError(t, h.Free(buf))

	buf, err = h.Allocate(3 * format.PageSize)
	require.NoError(t, err)
	testutil.RequireZeroed(t, buf.Bytes())
	require.NoError(t, h.Free(buf))
}

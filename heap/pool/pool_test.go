package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/internal/testutil"
)

func TestWithdrawFallsBackToFresh(t *testing.T) {
	mem := testutil.SetupArena(t, 1024)
	var c Counters
	p := New(mem, &c, CachedDomain, 4, false)

	b, err := p.Withdraw(true)
	require.NoError(t, err)
	require.False(t, b.FromPool)
	require.Equal(t, order.Order(4), b.Order)
	require.Equal(t, physmem.Zero|physmem.NoRetry|physmem.NoWarn, p.FetchFlags())

	p.Deposit(b)
	require.Equal(t, int64(16), c.Cached())
	require.Equal(t, 1, p.Len())

	again, err := p.Withdraw(true)
	require.NoError(t, err)
	require.True(t, again.FromPool)
	require.Equal(t, b.PFN, again.PFN)
	require.Zero(t, c.Cached())

	fresh, err := p.Withdraw(false)
	require.NoError(t, err)
	require.False(t, fresh.FromPool, "fromPool=false must bypass the cache")
}

func TestOrderZeroFetchPolicy(t *testing.T) {
	mem := testutil.SetupArena(t, 16)
	var c Counters
	require.Equal(t, physmem.Zero, New(mem, &c, UncachedDomain, 0, false).FetchFlags())
}

func TestTryWithdrawNeverAllocates(t *testing.T) {
	mem := testutil.SetupArena(t, 64)
	var c Counters
	p := New(mem, &c, SecureDomain(secure.CPPixel), 0, false)

	_, ok := p.TryWithdraw()
	require.False(t, ok)
	require.Equal(t, int64(64), mem.FreePages())
}

func TestDepositOrderMismatchPanics(t *testing.T) {
	mem := testutil.SetupArena(t, 64)
	var c Counters
	p := New(mem, &c, CachedDomain, 4, false)
	require.Panics(t, func() { p.Deposit(Block{Order: 0}) })
	require.Panics(t, func() { _ = p.Release(Block{Order: 2}) })
}

func TestWithdrawPrefersHighmem(t *testing.T) {
	mem := testutil.SetupArena(t, 64, testutil.WithHighmem(32))
	var c Counters
	p := New(mem, &c, CachedDomain, 0, false)

	p.Deposit(Block{PFN: 1, Order: 0})
	p.Deposit(Block{PFN: 40, Order: 0, Highmem: true})

	b, ok := p.TryWithdraw()
	require.True(t, ok)
	require.True(t, b.Highmem)
	require.Equal(t, physmem.PFN(40), b.PFN)
}

func TestShrinkHonoursHintAndLimit(t *testing.T) {
	mem := testutil.SetupArena(t, 64, testutil.WithHighmem(32))
	var c Counters
	p := New(mem, &c, CachedDomain, 1, false)

	var lows, highs, spare []Block
	for len(lows) < 3 || len(highs) < 2 {
		b, err := p.Fresh()
		require.NoError(t, err)
		switch {
		case b.Highmem && len(highs) < 2:
			highs = append(highs, b)
		case !b.Highmem && len(lows) < 3:
			lows = append(lows, b)
		default:
			spare = append(spare, b)
		}
	}
	for _, b := range spare {
		require.NoError(t, p.Release(b))
	}
	for _, b := range append(lows, highs...) {
		p.Deposit(b)
	}
	require.Equal(t, int64(10), c.Cached())

	// Probe: reports without releasing.
	require.Equal(t, 6, p.Shrink(0, 1<<30, false))
	require.Equal(t, 10, p.Shrink(0, 1<<30, true))
	require.Equal(t, 5, p.Len())

	// Limit caps at whole blocks.
	require.Equal(t, 2, p.Shrink(100, 3, false))
	require.Equal(t, int64(8), c.Cached())

	// Without highmem permission only lowmem goes.
	require.Equal(t, 4, p.Shrink(100, 100, false))
	high, low := p.Count()
	require.Equal(t, 2, high)
	require.Zero(t, low)

	require.Equal(t, 4, p.Shrink(100, 100, true))
	require.Zero(t, c.Cached())
	require.Equal(t, int64(64), mem.FreePages())
}

func TestShrinkStopsAtScanTarget(t *testing.T) {
	mem := testutil.SetupArena(t, 64)
	var c Counters
	p := New(mem, &c, UncachedDomain, 0, false)
	for range 10 {
		b, err := p.Fresh()
		require.NoError(t, err)
		p.Deposit(b)
	}
	require.Equal(t, 4, p.Shrink(4, 100, true))
	require.Equal(t, 6, p.Len())
}

func TestSetLifecycle(t *testing.T) {
	mem := testutil.SetupArena(t, 1024)
	var c Counters
	tbl := order.MustNew(8, 4, 0)
	s := NewSet(mem, &c, UncachedDomain, tbl, false)

	require.Equal(t, 3, s.Len())
	require.Equal(t, order.Order(4), s.Pool(4).Order())
	require.Panics(t, func() { s.Pool(5) })

	for i := range s.Len() {
		b, err := s.At(i).Fresh()
		require.NoError(t, err)
		s.At(i).Deposit(b)
	}
	require.Equal(t, int64(273), s.Pages())
	require.Equal(t, int64(273), c.Cached())

	require.Equal(t, 273, s.Destroy())
	require.Zero(t, c.Cached())
	require.Equal(t, int64(1024), mem.FreePages())
}

func TestConcurrentDepositWithdraw(t *testing.T) {
	mem := testutil.SetupArena(t, 4096)
	var c Counters
	p := New(mem, &c, CachedDomain, 0, false)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b, err := p.Withdraw(true)
				if err != nil {
					continue
				}
				p.Deposit(b)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(p.Len()), c.Cached())
	require.Equal(t, int64(4096)-c.Cached(), mem.FreePages())
}

func TestTakeLeavesBlocksWithCaller(t *testing.T) {
	mem := testutil.SetupArena(t, 64)
	var c Counters
	p := New(mem, &c, SecureDomain(10), 1, false)
	for range 4 {
		b, err := p.Fresh()
		require.NoError(t, err)
		p.Deposit(b)
	}
	free := mem.FreePages()

	taken := p.Take(4, 100, true)
	require.Len(t, taken, 2)
	require.Equal(t, int64(4), c.Cached())
	require.Equal(t, free, mem.FreePages())
	for _, b := range taken {
		require.True(t, b.FromPool)
		require.NoError(t, p.Release(b))
	}

	rest := p.TakeAll()
	require.Len(t, rest, 2)
	require.Zero(t, c.Cached())
	require.Zero(t, p.Len())
}

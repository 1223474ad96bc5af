package pool

import (
	"fmt"
	"sync"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
)

// Pool is a free-block cache for one (order, domain) pair.
type Pool struct {
	mu     sync.Mutex
	high   []physmem.PFN // highmem blocks, oldest first
	low    []physmem.PFN // lowmem blocks, oldest first
	order  order.Order
	domain Domain
	fetch  physmem.Flags
	boost  bool

	mem      *physmem.Allocator
	counters *Counters
}

// New creates an empty pool for blocks of order o.
func New(mem *physmem.Allocator, counters *Counters, domain Domain, o order.Order, boost bool) *Pool {
	fetch := physmem.Zero
	if o > 0 {
		fetch |= physmem.NoRetry | physmem.NoWarn
	}
	return &Pool{
		order:    o,
		domain:   domain,
		fetch:    fetch,
		boost:    boost,
		mem:      mem,
		counters: counters,
	}
}

// Order returns the order of every block in the pool.
func (p *Pool) Order() order.Order { return p.order }

// Domain returns the domain the pool serves.
func (p *Pool) Domain() Domain { return p.domain }

// Boost reports whether the pool belongs to a fast-path tier.
func (p *Pool) Boost() bool { return p.boost }

// FetchFlags returns the system allocation policy for fresh blocks.
func (p *Pool) FetchFlags() physmem.Flags { return p.fetch }

// Withdraw returns a block of the pool's order. When fromPool is true and a
// cached block can be taken without waiting for the lock, it is returned
// with FromPool set. Otherwise a fresh block is allocated from the system.
func (p *Pool) Withdraw(fromPool bool) (Block, error) {
	if fromPool && p.mu.TryLock() {
		pfn, high, ok := p.removeLocked(true)
		p.mu.Unlock()
		if ok {
			return Block{PFN: pfn, Order: p.order, FromPool: true, Highmem: high}, nil
		}
	}
	return p.Fresh()
}

// TryWithdraw returns a cached block, or false when the pool is empty.
// It never allocates from the system.
func (p *Pool) TryWithdraw() (Block, bool) {
	p.mu.Lock()
	pfn, high, ok := p.removeLocked(true)
	p.mu.Unlock()
	if !ok {
		return Block{}, false
	}
	return Block{PFN: pfn, Order: p.order, FromPool: true, Highmem: high}, true
}

// Fresh allocates a new block from the system with the pool's fetch policy.
func (p *Pool) Fresh() (Block, error) {
	return p.fresh(p.fetch)
}

// FreshNoReclaim is Fresh without direct reclaim. Warm fill uses it so that
// topping up one pool can never shrink another.
func (p *Pool) FreshNoReclaim() (Block, error) {
	return p.fresh(p.fetch | physmem.NoRetry | physmem.NoWarn)
}

func (p *Pool) fresh(flags physmem.Flags) (Block, error) {
	pfn, err := p.mem.Alloc(uint(p.order), flags)
	if err != nil {
		return Block{}, err
	}
	return Block{PFN: pfn, Order: p.order, Highmem: p.mem.IsHighmem(pfn)}, nil
}

// removeLocked splices one block out of the free lists, highmem first when
// preferHigh is set. p.mu must be held.
func (p *Pool) removeLocked(preferHigh bool) (physmem.PFN, bool, bool) {
	var pfn physmem.PFN
	high := false
	switch {
	case preferHigh && len(p.high) > 0:
		pfn, p.high = p.high[0], p.high[1:]
		high = true
	case len(p.low) > 0:
		pfn, p.low = p.low[0], p.low[1:]
	case len(p.high) > 0:
		pfn, p.high = p.high[0], p.high[1:]
		high = true
	default:
		return 0, false, false
	}
	p.counters.AddCached(-p.order.Pages())
	return pfn, high, true
}

// Deposit appends b to the free list.
//
// A block of a different order is a bookkeeping bug and panics.
func (p *Pool) Deposit(b Block) {
	if b.Order != p.order {
		panic(fmt.Sprintf("pool: deposit of order-%d block into order-%d pool (%s)", b.Order, p.order, p.domain))
	}
	p.mu.Lock()
	if b.Highmem {
		p.high = append(p.high, b.PFN)
	} else {
		p.low = append(p.low, b.PFN)
	}
	p.counters.AddCached(p.order.Pages())
	p.mu.Unlock()
}

// Release returns b straight to the system allocator, bypassing the cache.
func (p *Pool) Release(b Block) error {
	if b.Order != p.order {
		panic(fmt.Sprintf("pool: release of order-%d block through order-%d pool (%s)", b.Order, p.order, p.domain))
	}
	return p.mem.Free(b.PFN, uint(b.Order))
}

// Shrink releases cached blocks to the system, oldest lowmem blocks first,
// and returns the number of pages released. Highmem blocks are only taken
// when allowHigh is set. At most limit pages are released, and release
// stops once nrToScan pages have been freed.
//
// With nrToScan == 0, Shrink releases nothing and reports how many pages
// are eligible.
func (p *Pool) Shrink(nrToScan, limit int, allowHigh bool) int {
	if nrToScan == 0 {
		return p.Eligible(allowHigh)
	}
	return p.free(p.Take(nrToScan, limit, allowHigh))
}

// Eligible returns the number of cached pages a shrink could release.
func (p *Pool) Eligible(allowHigh bool) int {
	p.mu.Lock()
	n := len(p.low)
	if allowHigh {
		n += len(p.high)
	}
	p.mu.Unlock()
	return n * int(p.order.Pages())
}

// Take splices blocks out of the cache under the same rules as Shrink but
// hands them to the caller instead of the system. Callers that must undo
// per-block state before release (ownership, mappings) use Take and then
// Release or Deposit each block.
func (p *Pool) Take(nrToScan, limit int, allowHigh bool) []Block {
	pages := int(p.order.Pages())
	var out []Block

	p.mu.Lock()
	defer p.mu.Unlock()
	for taken := 0; taken < nrToScan && taken+pages <= limit; taken += pages {
		var b Block
		switch {
		case len(p.low) > 0:
			b = Block{PFN: p.low[0], Order: p.order, FromPool: true}
			p.low = p.low[1:]
		case allowHigh && len(p.high) > 0:
			b = Block{PFN: p.high[0], Order: p.order, FromPool: true, Highmem: true}
			p.high = p.high[1:]
		default:
			return out
		}
		p.counters.AddCached(-int64(pages))
		out = append(out, b)
	}
	return out
}

// TakeAll empties the cache and returns every block it held.
func (p *Pool) TakeAll() []Block {
	p.mu.Lock()
	out := make([]Block, 0, len(p.low)+len(p.high))
	for _, pfn := range p.low {
		out = append(out, Block{PFN: pfn, Order: p.order, FromPool: true})
	}
	for _, pfn := range p.high {
		out = append(out, Block{PFN: pfn, Order: p.order, FromPool: true, Highmem: true})
	}
	p.low, p.high = nil, nil
	p.counters.AddCached(-int64(len(out)) * p.order.Pages())
	p.mu.Unlock()
	return out
}

// Drain releases every cached block and returns the number of pages released.
func (p *Pool) Drain() int {
	return p.free(p.TakeAll())
}

// free releases blocks that already left the cache and reports only what
// the system actually took back.
func (p *Pool) free(blocks []Block) int {
	freed := 0
	for _, b := range blocks {
		if p.mem.Free(b.PFN, uint(b.Order)) == nil {
			freed += int(b.Pages())
		}
	}
	return freed
}

// Count returns the number of cached blocks, split by zone.
func (p *Pool) Count() (high, low int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.high), len(p.low)
}

// Len returns the total number of cached blocks.
func (p *Pool) Len() int {
	high, low := p.Count()
	return high + low
}

// Pages returns the number of cached pages.
func (p *Pool) Pages() int64 {
	return int64(p.Len()) * p.order.Pages()
}

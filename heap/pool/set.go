package pool

import (
	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
)

// Set is the collection of pools for one domain, one per order-table entry.
type Set struct {
	domain Domain
	table  *order.Table
	pools  []*Pool
}

// NewSet creates one empty pool per order in table.
func NewSet(mem *physmem.Allocator, counters *Counters, domain Domain, table *order.Table, boost bool) *Set {
	s := &Set{
		domain: domain,
		table:  table,
		pools:  make([]*Pool, table.Len()),
	}
	for i := range s.pools {
		s.pools[i] = New(mem, counters, domain, table.At(i), boost)
	}
	return s
}

// Domain returns the domain served by the set.
func (s *Set) Domain() Domain { return s.domain }

// Table returns the order table the set was built for.
func (s *Set) Table() *order.Table { return s.table }

// Pool returns the pool for order o. It panics if o is not in the table.
func (s *Set) Pool(o order.Order) *Pool { return s.pools[s.table.Index(o)] }

// At returns the pool at table position i.
func (s *Set) At(i int) *Pool { return s.pools[i] }

// Len returns the number of pools.
func (s *Set) Len() int { return len(s.pools) }

// Pages returns the number of cached pages across all pools.
func (s *Set) Pages() int64 {
	var n int64
	for _, p := range s.pools {
		n += p.Pages()
	}
	return n
}

// Destroy drains every pool and returns the number of pages released.
func (s *Set) Destroy() int {
	freed := 0
	for _, p := range s.pools {
		freed += p.Drain()
	}
	return freed
}

// TakeAll empties every pool and returns the blocks they held, largest
// order first.
func (s *Set) TakeAll() []Block {
	var out []Block
	for _, p := range s.pools {
		out = append(out, p.TakeAll()...)
	}
	return out
}

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/secure"
)

// Domain is an isolation class for memory: normal cached, normal uncached,
// or a secure VM. Secure domains are always uncached.
type Domain struct {
	VMID   secure.VMID
	Cached bool
}

var (
	// CachedDomain is normal, CPU-cacheable memory.
	CachedDomain = Domain{Cached: true}
	// UncachedDomain is normal, uncached memory.
	UncachedDomain = Domain{}
)

// SecureDomain returns the domain for vmid.
func SecureDomain(vmid secure.VMID) Domain { return Domain{VMID: vmid} }

// Secure reports whether the domain belongs to a secure VM.
func (d Domain) Secure() bool { return d.VMID != secure.None }

func (d Domain) String() string {
	switch {
	case d.Secure():
		return "secure:" + d.VMID.String()
	case d.Cached:
		return "cached"
	default:
		return "uncached"
	}
}

// Block is a physically contiguous span of 2^Order base pages.
type Block struct {
	PFN      physmem.PFN
	Order    order.Order
	FromPool bool // withdrawn from a cache rather than freshly allocated
	Highmem  bool
}

// Pages returns the number of base pages in the block.
func (b Block) Pages() int64 { return b.Order.Pages() }

// Bytes returns the byte size of the block.
func (b Block) Bytes() int64 { return b.Order.Bytes() }

func (b Block) String() string {
	src := "fresh"
	if b.FromPool {
		src = "pool"
	}
	return fmt.Sprintf("pfn=%d order=%d %s", b.PFN, b.Order, src)
}

// Counters are the heap-wide page counters shared by every pool of a heap.
type Counters struct {
	cached atomic.Int64 // pages held in pool free lists
	inUse  atomic.Int64 // pages handed out in live buffers
}

// Cached returns the number of pages held in pool free lists.
func (c *Counters) Cached() int64 { return c.cached.Load() }

// InUse returns the number of pages handed out in live buffers.
func (c *Counters) InUse() int64 { return c.inUse.Load() }

// AddCached adjusts the cached page count.
func (c *Counters) AddCached(n int64) { c.cached.Add(n) }

// AddInUse adjusts the in-use page count.
func (c *Counters) AddInUse(n int64) { c.inUse.Add(n) }

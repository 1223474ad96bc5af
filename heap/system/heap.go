package system

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Runtime debug flag for per-request logging - controlled by PAGEHEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("PAGEHEAP_LOG_ALLOC") != ""

// Heap is a tiered page heap over a physmem.Allocator.
type Heap struct {
	cfg      Config
	mem      *physmem.Allocator
	table    *order.Table
	counters pool.Counters
	nodes    *nodeCache
	log      *slog.Logger

	mu       sync.RWMutex // guards cached, uncached and secure
	cached   *pool.Set
	uncached *pool.Set
	secure   map[secure.VMID]*pool.Set

	// splitMu serializes splitting a larger secure pooled block and secure
	// pool shrinking, so a split remainder is never released mid-split.
	splitMu sync.Mutex

	// shrinkMu serializes releasing shrinks. The low-water allowance is
	// read from the counters and must not be spent twice.
	shrinkMu sync.Mutex

	closed atomic.Bool
}

// New creates a heap drawing fresh pages from mem. A nil cfg means
// DefaultConfig().
func New(mem *physmem.Allocator, cfg *Config) (*Heap, error) {
	if mem == nil {
		return nil, fmt.Errorf("system: nil page allocator: %w", types.ErrNoMemory)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := cfg.withDefaults(mem)
	if uint(c.Orders.Max()) > mem.MaxOrder() {
		return nil, fmt.Errorf("system: order %d exceeds allocator max order %d: %w",
			c.Orders.Max(), mem.MaxOrder(), types.ErrInvalidSize)
	}

	h := &Heap{
		cfg:    c,
		mem:    mem,
		table:  c.Orders,
		nodes:  newNodeCache(c.NodeCacheLimit),
		log:    c.Logger,
		secure: make(map[secure.VMID]*pool.Set),
	}
	h.cached = pool.NewSet(mem, &h.counters, pool.CachedDomain, h.table, false)
	h.uncached = pool.NewSet(mem, &h.counters, pool.UncachedDomain, h.table, false)
	for _, v := range c.SecureVMIDs {
		if _, err := h.CreatePoolSet(pool.SecureDomain(v)); err != nil {
			return nil, err
		}
	}
	if !c.NoDirectReclaim {
		mem.RegisterShrinker(h)
	}

	h.log.Info("heap created",
		"orders", h.table.String(),
		"low_water_pages", c.LowWaterPages,
		"secure_capable", c.SecureCapable,
		"secure_sets", len(h.secure),
		"tiers", len(c.Tiers))
	return h, nil
}

// Orders returns the heap's order table.
func (h *Heap) Orders() *order.Table { return h.table }

// Counters returns the heap-wide page counters.
func (h *Heap) Counters() *pool.Counters { return &h.counters }

// Allocator returns the page allocator the heap draws from.
func (h *Heap) Allocator() *physmem.Allocator { return h.mem }

// CreatePoolSet creates the pool set for a secure domain. Normal domains
// always have a set; asking for one returns types.ErrPoolSetExists.
func (h *Heap) CreatePoolSet(d pool.Domain) (*pool.Set, error) {
	if h.closed.Load() {
		return nil, types.ErrClosed
	}
	if d.Secure() && !secure.Valid(d.VMID) {
		return nil, fmt.Errorf("create pool set for vmid %d: %w", d.VMID, types.ErrInvalidVMID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.setLocked(d) != nil {
		return nil, fmt.Errorf("create pool set %s: %w", d, types.ErrPoolSetExists)
	}
	s := pool.NewSet(h.mem, &h.counters, d, h.table, false)
	h.secure[d.VMID] = s
	return s, nil
}

// DestroyPoolSet removes a secure domain's pool set and returns its pages
// to the system. Blocks are unassigned from the VM first; if the authority
// refuses, they are leaked rather than released while still VM-owned.
// Buffers of the domain freed afterwards go straight to the system.
func (h *Heap) DestroyPoolSet(d pool.Domain) (int, error) {
	if !d.Secure() {
		return 0, fmt.Errorf("destroy pool set %s: %w", d, types.ErrInvalidVMID)
	}
	h.mu.Lock()
	s := h.secure[d.VMID]
	delete(h.secure, d.VMID)
	h.mu.Unlock()
	if s == nil {
		return 0, fmt.Errorf("destroy pool set %s: %w", d, types.ErrNoPoolSet)
	}

	h.splitMu.Lock()
	defer h.splitMu.Unlock()
	return h.releaseSecure(d.VMID, s.TakeAll())
}

// PoolSet returns the set serving d, or nil.
func (h *Heap) PoolSet(d pool.Domain) *pool.Set {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.setLocked(d)
}

func (h *Heap) setLocked(d pool.Domain) *pool.Set {
	switch {
	case d.Secure():
		return h.secure[d.VMID]
	case d.Cached:
		return h.cached
	default:
		return h.uncached
	}
}

// secureSets returns the secure sets in VMID order.
func (h *Heap) secureSets() []*pool.Set {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*pool.Set, 0, len(h.secure))
	for _, v := range secure.All() {
		if s, ok := h.secure[v]; ok {
			out = append(out, s)
		}
	}
	return out
}

// releaseSecure unassigns secure blocks that are no longer in any pool and
// frees them to the system. On authority failure the blocks are leaked and
// the error returned.
func (h *Heap) releaseSecure(vmid secure.VMID, blocks []pool.Block) (int, error) {
	if len(blocks) == 0 {
		return 0, nil
	}
	if err := h.cfg.Authority.Unassign(vmid, h.spans(blocks)); err != nil {
		var pages int64
		for _, b := range blocks {
			pages += b.Pages()
		}
		h.log.Error("secure unassign failed, leaking pages",
			"vmid", vmid.String(), "blocks", len(blocks), "pages", pages, "error", err)
		return 0, types.Wrap(types.ErrOwnershipTransfer, err)
	}
	freed := 0
	for _, b := range blocks {
		if err := h.mem.Free(b.PFN, uint(b.Order)); err != nil {
			h.log.Error("release secure block", "block", b.String(), "error", err)
			continue
		}
		freed += int(b.Pages())
	}
	return freed, nil
}

// depositSecure returns a VM-owned block to set. When set has been
// destroyed since the caller looked it up, the block is unassigned and
// released instead of landing in a set nothing drains.
func (h *Heap) depositSecure(set *pool.Set, b pool.Block) {
	vmid := set.Domain().VMID
	h.mu.RLock()
	live := h.secure[vmid] == set
	if live {
		set.Pool(b.Order).Deposit(b)
	}
	h.mu.RUnlock()
	if !live {
		_, _ = h.releaseSecure(vmid, []pool.Block{b})
	}
}

func (h *Heap) spans(blocks []pool.Block) []secure.Span {
	spans := make([]secure.Span, len(blocks))
	for i, b := range blocks {
		spans[i] = secure.Span{Addr: h.mem.Phys(b.PFN), Len: uint64(b.Bytes())}
	}
	return spans
}

// tierFor returns the first tier eligible for a request, or nil.
func (h *Heap) tierFor(d pool.Domain, size int64) pool.Tier {
	for _, t := range h.cfg.Tiers {
		if t.Eligible(d, size) {
			return t
		}
	}
	return nil
}

// Close drains every pool set, unregisters the heap from direct reclaim
// and rejects further requests. Buffers still outstanding must be freed
// before Close.
func (h *Heap) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !h.cfg.NoDirectReclaim {
		h.mem.UnregisterShrinker(h)
	}

	freed := h.cached.Destroy() + h.uncached.Destroy()
	var firstErr error
	h.splitMu.Lock()
	for _, s := range h.secureSets() {
		n, err := h.releaseSecure(s.Domain().VMID, s.TakeAll())
		freed += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.splitMu.Unlock()

	h.log.Info("heap closed", "released_pages", freed, "in_use_pages", h.counters.InUse())
	return firstErr
}

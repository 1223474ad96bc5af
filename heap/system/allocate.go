package system

import (
	"fmt"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/sgtable"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

// allocation is the state of one in-flight Allocate call.
type allocation struct {
	h      *Heap
	req    Request
	domain pool.Domain
	set    *pool.Set
	force  bool

	arena  nodeArena
	fresh  []*pageInfo
	pooled []*pageInfo
}

// Allocate serves req and returns the finished buffer.
//
// Secure requests prefer pooled blocks, which the VM already owns, and fall
// back to splitting a larger pooled block before touching the system. Only
// the freshly allocated blocks of a secure buffer are assigned to the VM.
func (h *Heap) Allocate(req Request) (*Buffer, error) {
	if h.closed.Load() {
		return nil, types.ErrClosed
	}
	if req.Size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", req.Size, types.ErrInvalidSize)
	}
	d := req.Domain()
	if d.Secure() {
		if !secure.Valid(req.VMID) {
			return nil, fmt.Errorf("allocate for vmid %d: %w", req.VMID, types.ErrInvalidVMID)
		}
		if !h.cfg.SecureCapable {
			h.log.Info("secure allocation on non-secure heap", "vmid", req.VMID.String())
			return nil, types.ErrSecureUnsupported
		}
	}
	size, ok := format.PageAlignChecked(req.Size)
	if !ok || size>>format.PageShift > h.cfg.TotalRAMPages/types.TotalRAMDivisor {
		return nil, fmt.Errorf("allocate %d bytes: %w", req.Size, types.ErrTooLarge)
	}
	set := h.PoolSet(d)
	if set == nil {
		return nil, fmt.Errorf("allocate from %s: %w", d, types.ErrNoPoolSet)
	}

	a := &allocation{
		h:      h,
		req:    req,
		domain: d,
		set:    set,
		force:  req.Flags.Has(types.FlagPoolForceAlloc),
	}
	a.arena.cache = h.nodes

	if err := a.decompose(size); err != nil {
		a.rollback()
		if logAlloc {
			h.log.Debug("allocate failed", "size", size, "domain", d.String(), "error", err)
		}
		return nil, err
	}

	buf := a.build(size)
	if err := a.assign(buf); err != nil {
		return nil, err
	}
	if logAlloc {
		h.log.Debug("allocate",
			"size", size,
			"domain", d.String(),
			"blocks", buf.table.Len(),
			"fresh", buf.sync.Len())
	}
	return buf, nil
}

// decompose fills a.fresh and a.pooled until size bytes are covered.
func (a *allocation) decompose(size int64) error {
	h := a.h
	remaining := size
	ceiling := h.table.Max()

	if t := h.tierFor(a.domain, size); t != nil && !a.force {
		var took int64
		for remaining > 0 {
			n, err := a.arena.get()
			if err != nil {
				return fmt.Errorf("tracking node: %w", err)
			}
			b, ok := t.Withdraw(remaining, ceiling)
			if !ok {
				a.arena.put(n)
				break
			}
			n.block, n.tier = b, t
			a.pooled = append(a.pooled, n)
			h.counters.AddInUse(b.Pages())
			remaining -= b.Bytes()
			ceiling = b.Order
			took += b.Pages()
		}
		if took > 0 {
			t.Consumed(took)
		}
	}

	for remaining > 0 {
		n, err := a.arena.get()
		if err != nil {
			return fmt.Errorf("tracking node: %w", err)
		}
		var b pool.Block
		if a.domain.Secure() {
			b, err = a.poolPreferred(remaining, ceiling)
		} else {
			b, err = a.largestAvailable(remaining, ceiling)
		}
		if err != nil {
			a.arena.put(n)
			return fmt.Errorf("allocate %d bytes (%d remaining) from %s: %w",
				size, remaining, a.domain, err)
		}
		n.block = b
		h.counters.AddInUse(b.Pages())
		if b.FromPool {
			a.pooled = append(a.pooled, n)
		} else {
			a.fresh = append(a.fresh, n)
		}
		remaining -= b.Bytes()
		ceiling = b.Order
	}
	return nil
}

// largestAvailable returns a block of the largest order <= ceiling that
// fits in remaining bytes and can be obtained from a pool or the system.
func (a *allocation) largestAvailable(remaining int64, ceiling order.Order) (pool.Block, error) {
	for i := 0; i < a.h.table.Len(); i++ {
		o := a.h.table.At(i)
		if o > ceiling || o.Bytes() > remaining {
			continue
		}
		b, err := a.set.Pool(o).Withdraw(!a.force)
		if err != nil {
			continue
		}
		if !b.FromPool || (a.h.cfg.SyncPooledForDevice && !a.domain.Secure()) {
			a.h.cfg.Syncer.SyncForDevice(a.h.mem.Phys(b.PFN), b.Bytes())
		}
		return b, nil
	}
	return pool.Block{}, types.ErrNoMemory
}

// poolPreferred is the secure-domain strategy: any cached block that fits,
// then a split of a larger cached block, then largestAvailable.
func (a *allocation) poolPreferred(remaining int64, ceiling order.Order) (pool.Block, error) {
	if a.force {
		return a.largestAvailable(remaining, ceiling)
	}
	for _, o := range a.h.table.Fits(remaining, ceiling) {
		if b, ok := a.set.Pool(o).TryWithdraw(); ok {
			return b, nil
		}
	}
	if b, ok := a.split(remaining, ceiling); ok {
		return b, nil
	}
	return a.largestAvailable(remaining, ceiling)
}

// split takes the smallest cached block larger than the smallest eligible
// order, splits it, returns one piece and deposits the rest into the
// target pool. The pieces are still owned by the VM.
func (a *allocation) split(remaining int64, ceiling order.Order) (pool.Block, bool) {
	fits := a.h.table.Fits(remaining, ceiling)
	if len(fits) == 0 {
		return pool.Block{}, false
	}
	target := fits[len(fits)-1]
	dst := a.set.Pool(target)

	a.h.splitMu.Lock()
	defer a.h.splitMu.Unlock()

	// Another request may have split a block while we waited.
	if b, ok := dst.TryWithdraw(); ok {
		return b, true
	}
	for i := a.h.table.Index(target) - 1; i >= 0; i-- {
		src := a.set.At(i)
		b, ok := src.TryWithdraw()
		if !ok {
			continue
		}
		if err := a.h.mem.Split(b.PFN, uint(b.Order), uint(target)); err != nil {
			a.h.log.Error("split secure block", "block", b.String(), "error", err)
			a.deposit(b)
			continue
		}
		step := target.Pages()
		pieces := b.Pages() / step
		for j := int64(1); j < pieces; j++ {
			a.deposit(pool.Block{
				PFN:     b.PFN + physmem.PFN(j*step),
				Order:   target,
				Highmem: b.Highmem,
			})
		}
		if logAlloc {
			a.h.log.Debug("split secure block",
				"vmid", a.domain.VMID.String(), "from", b.Order, "to", target, "pieces", pieces)
		}
		return pool.Block{PFN: b.PFN, Order: target, FromPool: true, Highmem: b.Highmem}, true
	}
	return pool.Block{}, false
}

// rollback returns every block taken so far: pooled blocks to the pool or
// tier they came from, fresh blocks to the system.
func (a *allocation) rollback() {
	h := a.h
	for _, n := range a.pooled {
		b := n.block
		h.counters.AddInUse(-b.Pages())
		if n.tier == nil || !n.tier.Deposit(a.domain, b) {
			a.deposit(b)
		}
		a.arena.put(n)
	}
	for _, n := range a.fresh {
		b := n.block
		h.counters.AddInUse(-b.Pages())
		if err := a.set.Pool(b.Order).Release(b); err != nil {
			h.log.Error("rollback release", "block", b.String(), "error", err)
		}
		a.arena.put(n)
	}
	a.pooled, a.fresh = nil, nil
}

// deposit returns a block taken from a.set. Secure sets can be destroyed
// while the allocation runs, so those go through Heap.depositSecure.
func (a *allocation) deposit(b pool.Block) {
	if a.domain.Secure() {
		a.h.depositSecure(a.set, b)
		return
	}
	a.set.Pool(b.Order).Deposit(b)
}

// build merges the fresh and pooled lists into a finished buffer and
// releases every tracking node.
func (a *allocation) build(size int64) *Buffer {
	h := a.h
	total := len(a.fresh) + len(a.pooled)
	buf := &Buffer{
		heap:   h,
		domain: a.domain,
		flags:  a.req.Flags,
		size:   size,
		blocks: make([]pool.Block, 0, total),
		table:  sgtable.New(total),
		sync:   sgtable.New(len(a.fresh)),
	}
	if a.req.WantPages {
		buf.pages = make([]physmem.PFN, 0, format.BytesToPages(size))
	}

	mergeDescending(a.fresh, a.pooled, func(n *pageInfo, fresh bool) {
		b := n.block
		e := h.entry(b)
		buf.blocks = append(buf.blocks, b)
		buf.table.Append(e)
		if fresh {
			buf.sync.Append(e)
		}
		if buf.pages != nil {
			for p := int64(0); p < b.Pages(); p++ {
				buf.pages = append(buf.pages, b.PFN+physmem.PFN(p))
			}
		}
		a.arena.put(n)
	})
	a.fresh, a.pooled = nil, nil
	return buf
}

// assign hands a secure buffer's fresh blocks to the VM. On failure the
// buffer is torn down: pooled blocks are unassigned and everything goes
// back to the system. If that unassign fails too, the whole buffer is
// leaked since its pages may still belong to the VM.
func (a *allocation) assign(buf *Buffer) error {
	if !a.domain.Secure() || buf.sync.Len() == 0 {
		return nil
	}
	h := a.h
	vmid := a.domain.VMID
	err := h.cfg.Authority.Assign(vmid, buf.sync.Spans())
	if err == nil {
		return nil
	}

	buf.MarkNoCache()
	buf.freed.Store(true)
	h.log.Error("secure assign failed", "vmid", vmid.String(), "fresh_blocks", buf.sync.Len(), "error", err)

	var owned []pool.Block
	for _, b := range buf.blocks {
		if b.FromPool {
			owned = append(owned, b)
		}
	}
	if len(owned) > 0 {
		if uerr := h.cfg.Authority.Unassign(vmid, h.spans(owned)); uerr != nil {
			h.log.Error("secure unassign after failed assign, leaking buffer",
				"vmid", vmid.String(), "pages", buf.PageCount(), "error", uerr)
			return types.Wrap(types.ErrOwnershipTransfer, err)
		}
	}
	for _, b := range buf.blocks {
		h.counters.AddInUse(-b.Pages())
		if ferr := h.mem.Free(b.PFN, uint(b.Order)); ferr != nil {
			h.log.Error("release after failed assign", "block", b.String(), "error", ferr)
		}
	}
	return types.Wrap(types.ErrOwnershipTransfer, err)
}

package system

import (
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Free returns buf's blocks to the heap.
//
// Normal buffers are zeroed and pooled. Secure buffers are pooled as-is and
// stay owned by their VM. A buffer marked no-cache, or allocated with
// FlagPoolForceAlloc, bypasses the pools; a secure one is unassigned first
// and, if the authority refuses, leaked instead of released.
func (h *Heap) Free(buf *Buffer) error {
	if buf == nil || buf.heap != h {
		return types.ErrBadFree
	}
	if h.closed.Load() {
		return types.ErrClosed
	}
	if !buf.freed.CompareAndSwap(false, true) {
		return types.ErrBadFree
	}

	d := buf.domain
	set := h.PoolSet(d)
	// A destroyed secure set leaves nowhere to pool VM-owned blocks.
	bypass := buf.NoCache() || buf.flags.Has(types.FlagPoolForceAlloc) || set == nil
	switch {
	case !bypass && !d.Secure():
		for i := range buf.blocks {
			clear(buf.Bytes(i))
		}
	case bypass && d.Secure():
		if err := h.cfg.Authority.Unassign(d.VMID, buf.table.Spans()); err != nil {
			h.log.Error("secure unassign on free failed, leaking buffer",
				"vmid", d.VMID.String(), "pages", buf.PageCount(), "error", err)
			return types.Wrap(types.ErrOwnershipTransfer, err)
		}
	}

	tier := h.tierFor(d, buf.size)
	for _, b := range buf.blocks {
		h.counters.AddInUse(-b.Pages())
		h.freeBlock(d, set, tier, bypass, b)
	}
	if logAlloc {
		h.log.Debug("free", "size", buf.size, "domain", d.String(), "bypass", bypass)
	}
	return nil
}

func (h *Heap) freeBlock(d pool.Domain, set *pool.Set, tier pool.Tier, bypass bool, b pool.Block) {
	b.FromPool = false
	if !bypass && tier != nil && tier.Deposit(d, b) {
		return
	}
	if bypass {
		if err := h.mem.Free(b.PFN, uint(b.Order)); err != nil {
			h.log.Error("release block", "block", b.String(), "error", err)
		}
		return
	}
	if d.Secure() {
		h.depositSecure(set, b)
		return
	}
	set.Pool(b.Order).Deposit(b)
}

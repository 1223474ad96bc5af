package system

import (
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
)

// shrinkFunc releases up to nrToScan pages, at most limit, from one pool.
type shrinkFunc func(nrToScan, limit int) int

// Shrink implements physmem.Shrinker. It releases pooled pages to the
// system, largest order first and within an order tiers, secure pools,
// uncached and then cached pools. Highmem blocks are only released when
// hint allows it. Pooled pages never drop below the low-water mark.
//
// With nrToScan == 0 nothing is released and the result is the number of
// pages a shrink could free, capped by the low-water allowance.
//
// Shrink is safe for concurrent use. Releasing shrinks run one at a time,
// so concurrent callers together never go below the low-water mark.
func (h *Heap) Shrink(hint physmem.Hint, nrToScan int) int {
	if h.closed.Load() {
		return 0
	}
	probe := nrToScan == 0
	if !probe {
		h.shrinkMu.Lock()
		defer h.shrinkMu.Unlock()
	}
	allowHigh := hint.AllowHighmem()
	secureSets := h.secureSets()

	total := 0
	for i := 0; i < h.table.Len(); i++ {
		if h.allowance() <= 0 {
			break
		}
		for _, fn := range h.shrinkers(i, secureSets, allowHigh) {
			if probe {
				total += fn(0, 0)
				continue
			}
			limit := h.allowance()
			want := nrToScan - total
			if limit <= 0 || want <= 0 {
				break
			}
			total += fn(want, limit)
		}
		if !probe && total >= nrToScan {
			break
		}
	}

	if probe {
		total = min(total, max(h.allowance(), 0))
	} else if total > 0 {
		h.log.Info("shrink",
			"order_hint", hint.Order,
			"requested", nrToScan,
			"freed_pages", total,
			"cached_pages", h.counters.Cached())
	}
	return total
}

// allowance is the number of pooled pages above the low-water mark.
func (h *Heap) allowance() int {
	return int(h.residentPages() - h.cfg.LowWaterPages)
}

// residentPages counts pages held by pools and tiers.
func (h *Heap) residentPages() int64 {
	n := h.counters.Cached()
	for _, t := range h.cfg.Tiers {
		n += t.Pages()
	}
	return n
}

// shrinkers lists the pools at order-table position i in release order.
func (h *Heap) shrinkers(i int, secureSets []*pool.Set, allowHigh bool) []shrinkFunc {
	fns := make([]shrinkFunc, 0, len(h.cfg.Tiers)+len(secureSets)+2)
	for _, t := range h.cfg.Tiers {
		fns = append(fns, func(nr, limit int) int { return t.Shrink(i, nr, limit, allowHigh) })
	}
	for _, s := range secureSets {
		p := s.At(i)
		fns = append(fns, func(nr, limit int) int { return h.shrinkSecure(p, nr, limit, allowHigh) })
	}
	uncached, cached := h.uncached.At(i), h.cached.At(i)
	fns = append(fns,
		func(nr, limit int) int { return uncached.Shrink(nr, limit, allowHigh) },
		func(nr, limit int) int { return cached.Shrink(nr, limit, allowHigh) },
	)
	return fns
}

// shrinkSecure releases blocks from a secure pool. They are unassigned
// from the VM before release; if that fails they go back to the pool.
func (h *Heap) shrinkSecure(p *pool.Pool, nrToScan, limit int, allowHigh bool) int {
	if nrToScan == 0 {
		return p.Eligible(allowHigh)
	}
	h.splitMu.Lock()
	defer h.splitMu.Unlock()

	blocks := p.Take(nrToScan, limit, allowHigh)
	freed, err := h.releaseSecureOrRestore(p, blocks)
	if err != nil {
		return 0
	}
	return freed
}

// releaseSecureOrRestore is releaseSecure for blocks that are still valid
// pool content: on authority failure they are re-deposited, not leaked.
func (h *Heap) releaseSecureOrRestore(p *pool.Pool, blocks []pool.Block) (int, error) {
	if len(blocks) == 0 {
		return 0, nil
	}
	if err := h.cfg.Authority.Unassign(p.Domain().VMID, h.spans(blocks)); err != nil {
		h.log.Warn("secure shrink unassign failed",
			"vmid", p.Domain().VMID.String(), "blocks", len(blocks), "error", err)
		for _, b := range blocks {
			p.Deposit(b)
		}
		return 0, err
	}
	freed := 0
	for _, b := range blocks {
		if err := p.Release(b); err != nil {
			h.log.Error("release secure block", "block", b.String(), "error", err)
			continue
		}
		freed += int(b.Pages())
	}
	return freed, nil
}

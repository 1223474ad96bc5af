package system

import (
	"context"
	"time"

	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Fill warms the pools: cached pools until the heap holds target pooled
// pages, then uncached pools until it holds twice that. Each set is filled
// largest order first and moves on when the system cannot supply an order
// without reclaim. A target of zero uses Config.WarmFillPages.
//
// Fill returns ctx.Err() if the context ends first.
func (h *Heap) Fill(ctx context.Context, target int64) error {
	if h.closed.Load() {
		return types.ErrClosed
	}
	if target <= 0 {
		target = h.cfg.WarmFillPages
	}
	start := time.Now()
	before := h.counters.Cached()
	h.log.Info("warm fill start", "target_pages", target, "cached_pages", before)

	if err := h.fillSet(ctx, h.cached, target); err != nil {
		return err
	}
	if err := h.fillSet(ctx, h.uncached, 2*target); err != nil {
		return err
	}

	h.log.Info("warm fill done",
		"added_pages", h.counters.Cached()-before,
		"cached_pages", h.counters.Cached(),
		"elapsed", time.Since(start))
	return nil
}

func (h *Heap) fillSet(ctx context.Context, s *pool.Set, target int64) error {
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		for h.counters.Cached() < target {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := p.FreshNoReclaim()
			if err != nil {
				break
			}
			h.cfg.Syncer.SyncForDevice(h.mem.Phys(b.PFN), b.Bytes())
			p.Deposit(b)
		}
	}
	return nil
}

package system

import (
	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
)

// PoolStats describes one pool.
type PoolStats struct {
	Domain     string      `json:"domain"`
	Order      order.Order `json:"order"`
	HighBlocks int         `json:"high_blocks"`
	LowBlocks  int         `json:"low_blocks"`
	Pages      int64       `json:"pages"`
}

// TierStats describes one fast-path tier.
type TierStats struct {
	Name  string `json:"name"`
	Pages int64  `json:"pages"`
}

// Stats is a point-in-time snapshot of a heap.
type Stats struct {
	CachedPages   int64         `json:"cached_pages"`
	InUsePages    int64         `json:"in_use_pages"`
	LowWaterPages int64         `json:"low_water_pages"`
	NodeSpills    int64         `json:"node_spills"`
	Pools         []PoolStats   `json:"pools"`
	Tiers         []TierStats   `json:"tiers,omitempty"`
	Memory        physmem.Stats `json:"memory"`
}

// Stats returns a snapshot of the heap's pools and counters. Pools are
// listed cached, uncached, then secure by VMID, each largest order first.
func (h *Heap) Stats() Stats {
	st := Stats{
		CachedPages:   h.counters.Cached(),
		InUsePages:    h.counters.InUse(),
		LowWaterPages: h.cfg.LowWaterPages,
		NodeSpills:    h.nodes.Spills(),
		Memory:        h.mem.Stats(),
	}
	sets := append([]*pool.Set{h.cached, h.uncached}, h.secureSets()...)
	for _, s := range sets {
		for i := 0; i < s.Len(); i++ {
			p := s.At(i)
			high, low := p.Count()
			st.Pools = append(st.Pools, PoolStats{
				Domain:     s.Domain().String(),
				Order:      p.Order(),
				HighBlocks: high,
				LowBlocks:  low,
				Pages:      int64(high+low) * p.Order().Pages(),
			})
		}
	}
	for _, t := range h.cfg.Tiers {
		st.Tiers = append(st.Tiers, TierStats{Name: t.Name(), Pages: t.Pages()})
	}
	return st
}

package system

import (
	"fmt"

	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/sgtable"
)

// mergeDescending emits the nodes of fresh and pooled as one sequence of
// non-increasing block order. When both heads have the same order the
// fresh node goes first. Both inputs must already be non-increasing.
func mergeDescending(fresh, pooled []*pageInfo, emit func(n *pageInfo, fresh bool)) {
	checkDescending("fresh", fresh)
	checkDescending("pooled", pooled)

	i, j := 0, 0
	for i < len(fresh) || j < len(pooled) {
		switch {
		case j == len(pooled):
			emit(fresh[i], true)
			i++
		case i == len(fresh):
			emit(pooled[j], false)
			j++
		case fresh[i].block.Order >= pooled[j].block.Order:
			emit(fresh[i], true)
			i++
		default:
			emit(pooled[j], false)
			j++
		}
	}
}

func checkDescending(name string, nodes []*pageInfo) {
	for k := 1; k < len(nodes); k++ {
		if nodes[k].block.Order > nodes[k-1].block.Order {
			panic(fmt.Sprintf("system: %s list not in non-increasing order at %d (%d after %d)",
				name, k, nodes[k].block.Order, nodes[k-1].block.Order))
		}
	}
}

// entry describes b as a table entry.
func (h *Heap) entry(b pool.Block) sgtable.Entry {
	return sgtable.Entry{PFN: b.PFN, Addr: h.mem.Phys(b.PFN), Length: b.Bytes()}
}

package system

import (
	"sync/atomic"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/sgtable"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Request describes one allocation.
type Request struct {
	// Size in bytes. It is rounded up to a whole number of pages.
	Size int64

	Flags types.Flags

	// VMID selects a secure domain. secure.None requests normal memory,
	// cached or uncached according to Flags.
	VMID secure.VMID

	// WantPages asks for a flat per-page PFN list alongside the table.
	WantPages bool
}

// Domain returns the domain the request is served from.
func (r Request) Domain() pool.Domain {
	if r.VMID != secure.None {
		return pool.SecureDomain(r.VMID)
	}
	return pool.Domain{Cached: r.Flags.Has(types.FlagCached)}
}

// Buffer is a completed allocation.
type Buffer struct {
	heap   *Heap
	domain pool.Domain
	flags  types.Flags
	size   int64

	blocks []pool.Block
	table  *sgtable.Table
	sync   *sgtable.Table
	pages  []physmem.PFN

	noCache atomic.Bool
	freed   atomic.Bool
}

// Size returns the page-aligned size of the buffer in bytes.
func (b *Buffer) Size() int64 { return b.size }

// Domain returns the domain the buffer was allocated from.
func (b *Buffer) Domain() pool.Domain { return b.domain }

// Flags returns the request flags.
func (b *Buffer) Flags() types.Flags { return b.flags }

// Table returns the scatter list, ordered by non-increasing block size.
func (b *Buffer) Table() *sgtable.Table { return b.table }

// SyncTable returns the entries that were freshly allocated and needed
// device sync. It is empty when every block came from a pool.
func (b *Buffer) SyncTable() *sgtable.Table { return b.sync }

// Blocks returns the blocks in table order. The slice must not be modified.
func (b *Buffer) Blocks() []pool.Block { return b.blocks }

// Pages returns the per-page PFN list, or nil if the request did not ask
// for it.
func (b *Buffer) Pages() []physmem.PFN { return b.pages }

// FreshBlocks returns the number of blocks allocated from the system.
func (b *Buffer) FreshBlocks() int { return b.sync.Len() }

// MarkNoCache makes Free return the buffer's blocks to the system instead
// of the pools.
func (b *Buffer) MarkNoCache() { b.noCache.Store(true) }

// NoCache reports whether MarkNoCache was called.
func (b *Buffer) NoCache() bool { return b.noCache.Load() }

// Bytes returns the CPU view of block i.
func (b *Buffer) Bytes(i int) []byte {
	blk := b.blocks[i]
	return b.heap.mem.Bytes(blk.PFN, uint(blk.Order))
}

// PageCount returns the size of the buffer in base pages.
func (b *Buffer) PageCount() int64 { return format.BytesToPages(b.size) }

// Package contig is the non-pooled fallback heap for consumers that need
// one physically contiguous span. It takes the smallest power-of-two block
// covering a request, gives the unused tail back to the page allocator
// immediately, and returns the rest on free. It keeps no pools and takes
// no part in reclaim.
package contig

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/sgtable"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Heap allocates physically contiguous buffers.
type Heap struct {
	mem    *physmem.Allocator
	syncer physmem.DeviceSyncer
	inUse  atomic.Int64
}

// Buffer is one contiguous span.
type Buffer struct {
	heap  *Heap
	pfn   physmem.PFN
	pages int64
	table *sgtable.Table
	freed atomic.Bool
}

// New returns a contiguous heap over mem. A nil syncer means
// physmem.NopSyncer.
func New(mem *physmem.Allocator, syncer physmem.DeviceSyncer) *Heap {
	if syncer == nil {
		syncer = physmem.NopSyncer{}
	}
	return &Heap{mem: mem, syncer: syncer}
}

// Allocate returns a zeroed contiguous buffer of at least size bytes,
// rounded up to whole pages.
func (h *Heap) Allocate(size int64) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("contig allocate %d bytes: %w", size, types.ErrInvalidSize)
	}
	pages, ok := format.BytesToPagesChecked(size)
	if !ok {
		return nil, fmt.Errorf("contig allocate %d bytes: %w", size, types.ErrTooLarge)
	}
	ord := format.OrderForPages(pages)
	if ord > h.mem.MaxOrder() {
		return nil, fmt.Errorf("contig allocate %d pages: %w", pages, types.ErrTooLarge)
	}

	pfn, err := h.mem.Alloc(ord, physmem.Zero|physmem.NoWarn)
	if err != nil {
		return nil, fmt.Errorf("contig allocate %d pages: %w", pages, types.Wrap(types.ErrNoMemory, err))
	}
	if err := h.mem.Split(pfn, ord, 0); err != nil {
		_ = h.mem.Free(pfn, ord)
		return nil, fmt.Errorf("contig split: %w", err)
	}
	for p := pfn + physmem.PFN(pages); p < pfn+physmem.PFN(format.OrderPages(ord)); p++ {
		if err := h.mem.Free(p, 0); err != nil {
			return nil, fmt.Errorf("contig trim: %w", err)
		}
	}

	addr := h.mem.Phys(pfn)
	length := format.PagesToBytes(pages)
	h.syncer.SyncForDevice(addr, length)

	t := sgtable.New(1)
	t.Append(sgtable.Entry{PFN: pfn, Addr: addr, Length: length})
	h.inUse.Add(pages)
	return &Buffer{heap: h, pfn: pfn, pages: pages, table: t}, nil
}

// Free returns every page of buf to the page allocator.
func (h *Heap) Free(buf *Buffer) error {
	if buf == nil || buf.heap != h || !buf.freed.CompareAndSwap(false, true) {
		return types.ErrBadFree
	}
	for p := buf.pfn; p < buf.pfn+physmem.PFN(buf.pages); p++ {
		if err := h.mem.Free(p, 0); err != nil {
			return fmt.Errorf("contig free pfn %d: %w", p, err)
		}
	}
	h.inUse.Add(-buf.pages)
	return nil
}

// InUse returns the number of pages in live buffers.
func (h *Heap) InUse() int64 { return h.inUse.Load() }

// Table returns the single-entry scatter list.
func (b *Buffer) Table() *sgtable.Table { return b.table }

// PFN returns the first page of the span.
func (b *Buffer) PFN() physmem.PFN { return b.pfn }

// Pages returns the span length in pages.
func (b *Buffer) Pages() int64 { return b.pages }

// Bytes returns the CPU view of the span.
func (b *Buffer) Bytes() []byte {
	return b.heap.mem.Range(b.pfn, b.pages)
}

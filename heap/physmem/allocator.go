package physmem

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/joshuapare/pageheap/internal/buf"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/internal/sysmem"
)

const (
	// defaultArenaPages is used when neither Config.Pages nor the machine's
	// RAM size is known (64 MiB).
	defaultArenaPages = 16384

	// maxDefaultArenaPages caps the RAM-derived default arena (256 MiB).
	maxDefaultArenaPages = 65536

	// discardOrder is the smallest coalesced free block handed back to the
	// host with sysmem.Discard.
	discardOrder = 9

	// reclaimBatch is the minimum number of pages requested from shrinkers
	// in one direct reclaim pass.
	reclaimBatch = 128
)

// Config configures an Allocator.
type Config struct {
	// Pages is the arena size in base pages. Zero derives it from the
	// machine's RAM (1/16th, capped at 256 MiB).
	Pages int64

	// HighmemStart is the first PFN treated as highmem. Zero means the
	// arena has no highmem.
	HighmemStart PFN

	// PhysBase is the physical address of PFN 0. Zero means DefaultPhysBase.
	PhysBase uint64

	// HeapBacked places the arena on the Go heap instead of an anonymous
	// mapping. Useful for tests and platforms without mmap.
	HeapBacked bool

	// Logger receives allocation-failure warnings. Nil discards them.
	Logger *slog.Logger
}

// Allocator is a buddy page allocator over a fixed arena.
type Allocator struct {
	mu        sync.Mutex
	mem       []byte
	unmap     func() error
	pages     int64
	maxOrder  uint
	free      []freeArea
	owned     map[PFN]uint8 // allocated block head -> order
	highmem   PFN
	physBase  uint64
	mapped    bool
	closed    bool
	failAfter int64 // -1 disables fault injection
	stats     Stats
	log       *slog.Logger

	shrinkMu  sync.RWMutex
	shrinkers []Shrinker
}

// freeArea is the free list for one order. pos makes removal of an
// arbitrary buddy O(1); allocation pops from the tail.
type freeArea struct {
	list []PFN
	pos  map[PFN]int
}

func (f *freeArea) push(p PFN) {
	f.pos[p] = len(f.list)
	f.list = append(f.list, p)
}

func (f *freeArea) pop() PFN {
	n := len(f.list) - 1
	p := f.list[n]
	f.list = f.list[:n]
	delete(f.pos, p)
	return p
}

func (f *freeArea) remove(p PFN) bool {
	i, ok := f.pos[p]
	if !ok {
		return false
	}
	n := len(f.list) - 1
	last := f.list[n]
	f.list[i] = last
	f.pos[last] = i
	f.list = f.list[:n]
	delete(f.pos, p)
	return true
}

// New creates an allocator and maps its arena.
func New(cfg Config) (*Allocator, error) {
	pages := cfg.Pages
	if pages == 0 {
		pages = defaultArenaPages
		if ram, ok := sysmem.TotalRAMPages(); ok {
			pages = min(ram/16, maxDefaultArenaPages)
		}
	}
	if pages <= 0 {
		return nil, fmt.Errorf("physmem: invalid arena size %d pages", pages)
	}

	a := &Allocator{
		pages:     pages,
		owned:     make(map[PFN]uint8),
		highmem:   cfg.HighmemStart,
		physBase:  cfg.PhysBase,
		failAfter: -1,
		log:       cfg.Logger,
	}
	if a.physBase == 0 {
		a.physBase = DefaultPhysBase
	}
	if a.log == nil {
		a.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	size := format.PagesToBytes(pages)
	if cfg.HeapBacked {
		a.mem = make([]byte, size)
		a.unmap = func() error { return nil }
	} else {
		mem, unmap, err := sysmem.Map(int(size))
		if err != nil {
			return nil, err
		}
		a.mem, a.unmap, a.mapped = mem, unmap, true
	}

	a.maxOrder = min(format.HighBit(uint64(pages))-1, format.MaxOrder)
	a.free = make([]freeArea, a.maxOrder+1)
	for i := range a.free {
		a.free[i].pos = make(map[PFN]int)
	}

	// Carve the arena into the largest naturally aligned blocks.
	for off := int64(0); off < pages; {
		o := a.maxOrder
		for o > 0 && (off%(1<<o) != 0 || off+(1<<o) > pages) {
			o--
		}
		a.free[o].push(PFN(off))
		off += 1 << o
	}
	a.stats.TotalPages = pages
	a.stats.FreePages = pages
	return a, nil
}

// Close unmaps the arena. Outstanding PFNs become invalid.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.mem = nil
	return a.unmap()
}

// RegisterShrinker adds s to the direct-reclaim chain.
func (a *Allocator) RegisterShrinker(s Shrinker) {
	a.shrinkMu.Lock()
	a.shrinkers = append(a.shrinkers, s)
	a.shrinkMu.Unlock()
}

// UnregisterShrinker removes s from the direct-reclaim chain.
func (a *Allocator) UnregisterShrinker(s Shrinker) {
	a.shrinkMu.Lock()
	defer a.shrinkMu.Unlock()
	for i, x := range a.shrinkers {
		if x == s {
			a.shrinkers = append(a.shrinkers[:i], a.shrinkers[i+1:]...)
			return
		}
	}
}

// FailAfter makes every allocation after the next n successful ones fail
// with ErrNoPages. A negative n disables fault injection.
func (a *Allocator) FailAfter(n int) {
	a.mu.Lock()
	a.failAfter = int64(n)
	a.mu.Unlock()
}

// Alloc returns the head PFN of a free block of 2^order pages.
func (a *Allocator) Alloc(order uint, flags Flags) (PFN, error) {
	pfn, err := a.tryAlloc(order, flags)
	if errors.Is(err, ErrNoPages) && flags&NoRetry == 0 && a.directReclaim(order) > 0 {
		pfn, err = a.tryAlloc(order, flags)
	}
	if err != nil {
		a.mu.Lock()
		a.stats.Failures++
		a.mu.Unlock()
		if flags&NoWarn == 0 {
			a.log.Warn("page allocation failure", "order", order, "flags", flags.String(), "error", err)
		}
		return 0, err
	}
	if flags&Zero != 0 {
		clear(a.Bytes(pfn, order))
	}
	return pfn, nil
}

func (a *Allocator) tryAlloc(order uint, flags Flags) (PFN, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}
	if order > a.maxOrder {
		return 0, fmt.Errorf("%w: %d > %d", ErrBadOrder, order, a.maxOrder)
	}
	if a.failAfter == 0 {
		return 0, ErrNoPages
	}

	k := order
	for k <= a.maxOrder && len(a.free[k].list) == 0 {
		k++
	}
	if k > a.maxOrder {
		return 0, ErrNoPages
	}

	pfn := a.free[k].pop()
	for k > order {
		k--
		a.free[k].push(pfn + PFN(1)<<k)
	}
	a.owned[pfn] = uint8(order)
	a.stats.FreePages -= 1 << order
	a.stats.Allocs++
	if a.failAfter > 0 {
		a.failAfter--
	}
	return pfn, nil
}

// directReclaim asks every shrinker for pages. It must be called without
// a.mu held: shrinkers free pages back into this allocator.
func (a *Allocator) directReclaim(order uint) int {
	a.shrinkMu.RLock()
	shrinkers := append([]Shrinker(nil), a.shrinkers...)
	a.shrinkMu.RUnlock()
	if len(shrinkers) == 0 {
		return 0
	}

	want := max(int(format.OrderPages(order)), reclaimBatch)
	hint := Hint{Order: order, Highmem: true}
	freed := 0
	for _, s := range shrinkers {
		freed += s.Shrink(hint, want-freed)
		if freed >= want {
			break
		}
	}

	a.mu.Lock()
	a.stats.Reclaims++
	a.stats.Reclaimed += int64(freed)
	a.mu.Unlock()
	return freed
}

// Free returns a block to the arena, merging it with free buddies.
func (a *Allocator) Free(pfn PFN, order uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	got, ok := a.owned[pfn]
	if !ok || uint(got) != order {
		return fmt.Errorf("%w: pfn %d order %d", ErrBadFree, pfn, order)
	}
	delete(a.owned, pfn)
	a.stats.FreePages += 1 << order
	a.stats.Frees++

	for order < a.maxOrder {
		buddy := pfn ^ PFN(1)<<order
		if !a.free[order].remove(buddy) {
			break
		}
		pfn = min(pfn, buddy)
		order++
	}
	a.free[order].push(pfn)

	if a.mapped && order >= discardOrder {
		// Advisory: failure only means the host keeps the pages resident.
		_ = sysmem.Discard(a.bytesLocked(pfn, order))
	}
	return nil
}

// Split turns an allocated block of 2^from pages into 2^(from-to)
// individually allocated blocks of order to.
func (a *Allocator) Split(pfn PFN, from, to uint) error {
	if to > from {
		return fmt.Errorf("%w: split order %d into larger order %d", ErrBadOrder, from, to)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	got, ok := a.owned[pfn]
	if !ok || uint(got) != from {
		return fmt.Errorf("%w: split pfn %d order %d", ErrBadFree, pfn, from)
	}
	step := PFN(1) << to
	for p := pfn; p < pfn+PFN(1)<<from; p += step {
		a.owned[p] = uint8(to)
	}
	a.stats.Splits++
	return nil
}

// Bytes returns the memory of the block at pfn. The slice aliases the arena.
func (a *Allocator) Bytes(pfn PFN, order uint) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytesLocked(pfn, order)
}

func (a *Allocator) bytesLocked(pfn PFN, order uint) []byte {
	return a.rangeLocked(pfn, format.OrderPages(order))
}

// Range returns the memory of pages consecutive pages starting at pfn.
func (a *Allocator) Range(pfn PFN, pages int64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rangeLocked(pfn, pages)
}

func (a *Allocator) rangeLocked(pfn PFN, pages int64) []byte {
	if a.mem == nil {
		return nil
	}
	start := format.PagesToBytes(int64(pfn))
	if _, err := buf.CheckSpan(int64(len(a.mem)), start, pages, format.PageSize); err != nil {
		panic(fmt.Sprintf("physmem: pfn %d +%d pages outside arena of %d pages: %v", pfn, pages, a.pages, err))
	}
	b, _ := buf.Slice(a.mem, start, format.PagesToBytes(pages))
	return b
}

// Phys returns the physical address of pfn.
func (a *Allocator) Phys(pfn PFN) uint64 {
	return a.physBase + uint64(pfn)<<format.PageShift
}

// PFNOf returns the frame containing physical address addr.
func (a *Allocator) PFNOf(addr uint64) PFN {
	return PFN((addr - a.physBase) >> format.PageShift)
}

// IsHighmem reports whether pfn lies in the highmem zone.
func (a *Allocator) IsHighmem(pfn PFN) bool {
	return a.highmem != 0 && pfn >= a.highmem
}

// Owned reports whether pfn is the head of an allocated block and its order.
func (a *Allocator) Owned(pfn PFN) (order uint, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.owned[pfn]
	return uint(o), ok
}

// MaxOrder returns the largest order the arena can serve.
func (a *Allocator) MaxOrder() uint { return a.maxOrder }

// TotalPages returns the arena size in pages.
func (a *Allocator) TotalPages() int64 { return a.pages }

// FreePages returns the number of free pages.
func (a *Allocator) FreePages() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.FreePages
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

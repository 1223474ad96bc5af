// Package boost provides a fast-path tier for large requests: a set of
// pools kept filled to a fixed capacity by a background refill loop, so
// that camera- or display-sized buffers rarely reach the page allocator.
package boost

import (
	"context"
	"io"
	"log/slog"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Options configures a boost Pool.
type Options struct {
	// CapacityPages is the refill target. Deposits beyond it are declined.
	CapacityPages int64

	// MinBytes is the smallest eligible request. Zero means
	// types.DefaultBoostMinBytes.
	MinBytes int64

	// Domain is the only domain served. Secure domains are never served.
	Domain pool.Domain

	// Syncer is run on every refilled block before it is cached. Tier
	// blocks are handed out as pooled and not synced again. Nil means
	// physmem.NopSyncer.
	Syncer physmem.DeviceSyncer

	// Logger receives refill events. Nil discards them.
	Logger *slog.Logger
}

// Pool is a pool.Tier backed by its own pool set and page counters.
type Pool struct {
	name     string
	mem      *physmem.Allocator
	table    *order.Table
	set      *pool.Set
	counters pool.Counters
	opts     Options
	log      *slog.Logger
	wake     chan struct{}
}

var _ pool.Tier = (*Pool)(nil)

// New returns an empty boost pool. Call Refill or Run to fill it.
func New(name string, mem *physmem.Allocator, table *order.Table, opts Options) *Pool {
	if opts.MinBytes <= 0 {
		opts.MinBytes = types.DefaultBoostMinBytes
	}
	if opts.Syncer == nil {
		opts.Syncer = physmem.NopSyncer{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Pool{
		name:  name,
		mem:   mem,
		table: table,
		opts:  opts,
		log:   log.With("tier", name),
		wake:  make(chan struct{}, 1),
	}
	p.set = pool.NewSet(mem, &p.counters, opts.Domain, table, true)
	return p
}

// Name implements pool.Tier.
func (p *Pool) Name() string { return p.name }

// Eligible implements pool.Tier.
func (p *Pool) Eligible(d pool.Domain, size int64) bool {
	return !d.Secure() && d == p.opts.Domain && size >= p.opts.MinBytes
}

// Withdraw implements pool.Tier.
func (p *Pool) Withdraw(remaining int64, ceiling order.Order) (pool.Block, bool) {
	for _, o := range p.table.Fits(remaining, ceiling) {
		if b, ok := p.set.Pool(o).TryWithdraw(); ok {
			return b, true
		}
	}
	return pool.Block{}, false
}

// Deposit implements pool.Tier. Blocks of an order the tier does not
// pool, of another domain, or beyond capacity are declined.
func (p *Pool) Deposit(d pool.Domain, b pool.Block) bool {
	if d != p.opts.Domain || !p.table.Contains(b.Order) {
		return false
	}
	if p.counters.Cached()+b.Pages() > p.opts.CapacityPages {
		return false
	}
	b.FromPool = false
	p.set.Pool(b.Order).Deposit(b)
	return true
}

// Consumed implements pool.Tier by scheduling a refill.
func (p *Pool) Consumed(pages int64) {
	p.log.Debug("consumed", "pages", pages, "cached_pages", p.counters.Cached())
	p.Wake()
}

// Shrink implements pool.Tier. i indexes the tier's own order table.
func (p *Pool) Shrink(i int, nrToScan, limit int, allowHigh bool) int {
	if i >= p.set.Len() {
		return 0
	}
	return p.set.At(i).Shrink(nrToScan, limit, allowHigh)
}

// Pages implements pool.Tier.
func (p *Pool) Pages() int64 { return p.counters.Cached() }

// Capacity returns the refill target in pages.
func (p *Pool) Capacity() int64 { return p.opts.CapacityPages }

// Wake schedules a refill without blocking.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run refills the pool each time it is woken until ctx ends. It refills
// once on start.
func (p *Pool) Run(ctx context.Context) error {
	p.Wake()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
			if err := p.Refill(ctx); err != nil {
				return err
			}
		}
	}
}

// Refill tops the pool up to capacity, largest order first, without
// triggering direct reclaim. It stops early when the system runs short.
func (p *Pool) Refill(ctx context.Context) error {
	added := int64(0)
	for i := 0; i < p.set.Len(); i++ {
		pp := p.set.At(i)
		for p.counters.Cached()+pp.Order().Pages() <= p.opts.CapacityPages {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := pp.FreshNoReclaim()
			if err != nil {
				break
			}
			p.opts.Syncer.SyncForDevice(p.mem.Phys(b.PFN), b.Bytes())
			pp.Deposit(b)
			added += b.Pages()
		}
	}
	if added > 0 {
		p.log.Info("refill", "added_pages", added, "cached_pages", p.counters.Cached())
	}
	return nil
}

// Drain releases every cached block and returns the pages released.
func (p *Pool) Drain() int { return p.set.Destroy() }

package system

import (
	"io"
	"log/slog"

	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/pkg/types"
)

// Config configures a Heap. The zero value of an optional field selects
// its default; use DefaultConfig for the production sizing.
type Config struct {
	// Orders is the order table. Nil means order.Default().
	Orders *order.Table

	// LowWaterPages is the pooled-page floor the reclaimer never crosses.
	// Zero disables the floor.
	LowWaterPages int64

	// WarmFillPages is the cached-pool target for Fill. Uncached pools are
	// filled to twice this value.
	WarmFillPages int64

	// SecureCapable allows secure-domain requests. A heap without it
	// rejects them with types.ErrSecureUnsupported but still keeps secure
	// pool sets, which the reclaimer drains.
	SecureCapable bool

	// SecureVMIDs lists the secure domains that get a pool set at
	// construction. Nil means every valid VMID.
	SecureVMIDs []secure.VMID

	// SyncPooledForDevice also syncs blocks taken from a normal pool, not
	// only fresh ones. Targets that do not keep pooled pages clean for the
	// device need it.
	SyncPooledForDevice bool

	// NodeCacheLimit caps the tracking nodes outstanding outside a
	// request's inline arena. Zero means unlimited.
	NodeCacheLimit int

	// TotalRAMPages sizes the single-request ceiling (half of it). Zero
	// uses the page allocator's arena size.
	TotalRAMPages int64

	// Tiers are fast-path caches consulted before the standard pools, in
	// order. The first eligible tier serves a request.
	Tiers []pool.Tier

	// Authority transfers secure-domain ownership. Nil means an in-memory
	// secure.Ledger.
	Authority secure.Authority

	// Syncer performs device cache maintenance. Nil means physmem.NopSyncer.
	Syncer physmem.DeviceSyncer

	// NoDirectReclaim keeps the heap from registering itself as a shrinker
	// on the page allocator.
	NoDirectReclaim bool

	// Logger receives heap events. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the production configuration: the default order
// table, the default low-water and warm-fill sizes, and secure support.
func DefaultConfig() *Config {
	return &Config{
		Orders:        order.Default(),
		LowWaterPages: types.DefaultMinPoolPages,
		WarmFillPages: types.DefaultWarmFillPages,
		SecureCapable: true,
	}
}

// withDefaults returns a copy of c with every unset optional field filled.
func (c *Config) withDefaults(mem *physmem.Allocator) Config {
	out := *c
	if out.Orders == nil {
		out.Orders = order.Default()
	}
	if out.SecureVMIDs == nil {
		out.SecureVMIDs = secure.All()
	}
	if out.TotalRAMPages <= 0 {
		out.TotalRAMPages = mem.TotalPages()
	}
	if out.Authority == nil {
		out.Authority = secure.NewLedger()
	}
	if out.Syncer == nil {
		out.Syncer = physmem.NopSyncer{}
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out.LowWaterPages < 0 {
		out.LowWaterPages = 0
	}
	return out
}

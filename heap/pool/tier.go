package pool

import "github.com/joshuapare/pageheap/heap/order"

// Tier is an optional fast-path cache consulted before a domain's standard
// pools. It follows the same withdraw/deposit/shrink contract as a Pool but
// never allocates fresh memory on the request path: a miss falls through to
// the standard pools.
type Tier interface {
	// Name identifies the tier in logs and statistics.
	Name() string

	// Eligible reports whether a request of size bytes in domain d may be
	// served by this tier.
	Eligible(d Domain, size int64) bool

	// Withdraw takes a cached block of the largest order <= ceiling whose
	// size fits in remaining bytes. ok is false when no such block is cached.
	Withdraw(remaining int64, ceiling order.Order) (b Block, ok bool)

	// Deposit offers a freed block. It returns false when the tier declines
	// it; the caller then returns the block to the standard pool.
	Deposit(d Domain, b Block) bool

	// Consumed tells the tier how many pages a finished allocation took
	// from it, so it can schedule a refill.
	Consumed(pages int64)

	// Shrink releases cached pages from the tier's pool at order-table
	// position i. Semantics match Pool.Shrink.
	Shrink(i int, nrToScan, limit int, allowHigh bool) int

	// Pages returns the number of pages cached by the tier.
	Pages() int64
}

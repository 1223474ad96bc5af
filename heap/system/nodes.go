package system

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/pkg/types"
)

// inlineNodes is the number of tracking nodes a request holds without
// touching the shared node cache. Requests of up to this many blocks never
// allocate tracking state.
const inlineNodes = 128

// pageInfo tracks one block between decomposition and merge.
type pageInfo struct {
	block   pool.Block
	tier    pool.Tier // non-nil when the block came from a fast-path tier
	spilled bool
	live    bool
}

// nodeCache hands out tracking nodes once a request exhausts its inline
// arena. It is shared by every request of a heap.
type nodeCache struct {
	pool        sync.Pool
	limit       int64
	outstanding atomic.Int64
	spills      atomic.Int64
}

func newNodeCache(limit int) *nodeCache {
	return &nodeCache{
		pool:  sync.Pool{New: func() any { return new(pageInfo) }},
		limit: int64(limit),
	}
}

func (c *nodeCache) get() (*pageInfo, error) {
	if n := c.outstanding.Add(1); c.limit > 0 && n > c.limit {
		c.outstanding.Add(-1)
		return nil, types.ErrNoMemory
	}
	c.spills.Add(1)
	n := c.pool.Get().(*pageInfo)
	*n = pageInfo{spilled: true, live: true}
	return n, nil
}

func (c *nodeCache) put(n *pageInfo) {
	*n = pageInfo{}
	c.pool.Put(n)
	c.outstanding.Add(-1)
}

// Spills returns the number of nodes ever taken from the cache.
func (c *nodeCache) Spills() int64 { return c.spills.Load() }

// nodeArena is a request's tracking-node supply: a fixed inline array
// first, then the heap's node cache. Inline slots are used in sequence and
// not reused within a request.
type nodeArena struct {
	inline [inlineNodes]pageInfo
	next   int
	cache  *nodeCache
	live   int
}

func (a *nodeArena) get() (*pageInfo, error) {
	if a.next < len(a.inline) {
		n := &a.inline[a.next]
		a.next++
		*n = pageInfo{live: true}
		a.live++
		return n, nil
	}
	n, err := a.cache.get()
	if err != nil {
		return nil, err
	}
	a.live++
	return n, nil
}

// put releases n. Releasing a node twice is a bookkeeping bug and panics.
func (a *nodeArena) put(n *pageInfo) {
	if !n.live {
		panic("system: tracking node released twice")
	}
	n.live = false
	a.live--
	if n.spilled {
		a.cache.put(n)
	}
}

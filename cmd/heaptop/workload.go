package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/pageheap/cmd/heaptop/logger"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

// workloadOptions shapes the synthetic allocation traffic.
type workloadOptions struct {
	Workers     int
	MaxBytes    int64
	Hold        int
	SecureRatio float64
	Seed        uint64
	// Pace is the pause between requests per worker.
	Pace time.Duration
}

func defaultWorkloadOptions() workloadOptions {
	return workloadOptions{
		Workers:  4,
		MaxBytes: 2 * format.MiB,
		Hold:     8,
		Seed:     1,
		Pace:     5 * time.Millisecond,
	}
}

// workload runs allocate/free traffic against a heap until stopped.
type workload struct {
	heap *system.Heap
	opts workloadOptions

	paused   atomic.Bool
	allocs   atomic.Int64
	frees    atomic.Int64
	failures atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorkload(h *system.Heap, opts workloadOptions) *workload {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = format.PageSize
	}
	return &workload{heap: h, opts: opts}
}

// Start launches the workers. It must be called at most once.
func (w *workload) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := range w.opts.Workers {
		w.wg.Add(1)
		go w.run(ctx, uint64(i))
	}
	logger.Info("workload started", "workers", w.opts.Workers, "max_bytes", w.opts.MaxBytes)
}

// Stop cancels the workers, waits for them, and frees everything they hold.
func (w *workload) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.cancel = nil
	logger.Info("workload stopped", "allocs", w.allocs.Load(), "failures", w.failures.Load())
}

// SetPaused pauses or resumes the workers. Held buffers stay live.
func (w *workload) SetPaused(p bool) { w.paused.Store(p) }

// Paused reports whether the workers are paused.
func (w *workload) Paused() bool { return w.paused.Load() }

func (w *workload) run(ctx context.Context, id uint64) {
	defer w.wg.Done()
	rng := rand.New(rand.NewPCG(w.opts.Seed, id))
	vmids := secure.All()

	var live []*system.Buffer
	defer func() {
		for _, b := range live {
			w.free(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.Pace):
		}
		if w.paused.Load() {
			continue
		}

		req := system.Request{Size: 1 + rng.Int64N(w.opts.MaxBytes)}
		if rng.IntN(2) == 0 {
			req.Flags |= types.FlagCached
		}
		if rng.Float64() < w.opts.SecureRatio {
			req.VMID = vmids[rng.IntN(len(vmids))]
		}
		buf, err := w.heap.Allocate(req)
		if err != nil {
			w.failures.Add(1)
			logger.Debug("allocation failed", "size", req.Size, "error", err)
			continue
		}
		w.allocs.Add(1)
		live = append(live, buf)
		if len(live) > w.opts.Hold {
			w.free(live[0])
			live = live[1:]
		}
	}
}

func (w *workload) free(b *system.Buffer) {
	if err := w.heap.Free(b); err != nil {
		logger.Warn("free failed", "error", err)
		return
	}
	w.frees.Add(1)
}

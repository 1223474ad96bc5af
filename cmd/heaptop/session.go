package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/system"
)

// sessionOptions configures the heap a heaptop run watches.
type sessionOptions struct {
	ArenaPages int64
	HeapBacked bool
	Workload   workloadOptions
	Logger     *slog.Logger
}

// session owns the allocator, heap and workload for one run.
type session struct {
	mem  *physmem.Allocator
	heap *system.Heap
	work *workload
}

func newSession(opts sessionOptions) (*session, error) {
	mem, err := physmem.New(physmem.Config{
		Pages:      opts.ArenaPages,
		HeapBacked: opts.HeapBacked,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page allocator: %w", err)
	}

	cfg := system.DefaultConfig()
	// Keep the floors proportionate to a small arena.
	cfg.LowWaterPages = min(cfg.LowWaterPages, mem.TotalPages()/4)
	cfg.WarmFillPages = min(cfg.WarmFillPages, mem.TotalPages()/4)
	cfg.Logger = opts.Logger

	h, err := system.New(mem, cfg)
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("failed to create heap: %w", err)
	}
	return &session{mem: mem, heap: h, work: newWorkload(h, opts.Workload)}, nil
}

// Start begins the synthetic workload.
func (s *session) Start(ctx context.Context) { s.work.Start(ctx) }

// Close stops the workload and tears down the heap and arena.
func (s *session) Close() error {
	s.work.Stop()
	if err := s.heap.Close(); err != nil {
		return err
	}
	return s.mem.Close()
}

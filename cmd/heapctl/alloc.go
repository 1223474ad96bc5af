package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/pkg/types"
)

var (
	allocVMID   string
	allocCached bool
	allocForce  bool
	allocCycles int
	allocPages  bool
)

func init() {
	cmd := newAllocCmd()
	cmd.Flags().StringVar(&allocVMID, "vmid", "", "Allocate for a secure VM (name or number)")
	cmd.Flags().BoolVar(&allocCached, "cached", false, "Request CPU-cacheable memory")
	cmd.Flags().BoolVar(&allocForce, "force", false, "Bypass the pools (fresh blocks only)")
	cmd.Flags().IntVar(&allocCycles, "cycles", 2, "Allocate and free the sizes this many times")
	cmd.Flags().BoolVar(&allocPages, "pages", false, "List every page frame of each buffer")
	rootCmd.AddCommand(cmd)
}

func newAllocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alloc <size>...",
		Short: "Allocate and free buffers, showing their decomposition",
		Long: `The alloc command allocates one buffer per size argument, prints how each
was decomposed into blocks and where the blocks came from, then frees them.
Repeating the cycle shows freed blocks being served from the pools.

Sizes accept K, M, G (binary) and P (pages) suffixes.

Example:
  heapctl alloc 1088K
  heapctl alloc 272P 17P --cached --cycles 3
  heapctl alloc 4M --vmid cp-pixel`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlloc(cmd.OutOrStdout(), args)
		},
	}
}

type blockView struct {
	PFN    uint64 `json:"pfn"`
	Order  uint   `json:"order"`
	Pooled bool   `json:"pooled"`
}

type allocResult struct {
	Cycle  int         `json:"cycle"`
	Size   int64       `json:"size"`
	Fresh  int         `json:"fresh"`
	Pooled int         `json:"pooled"`
	Blocks []blockView `json:"blocks"`
	Pages  []uint64    `json:"pages,omitempty"`
}

func runAlloc(w io.Writer, args []string) error {
	sizes := make([]int64, len(args))
	for i, a := range args {
		n, err := parseSize(a)
		if err != nil {
			return err
		}
		sizes[i] = n
	}
	req := system.Request{WantPages: allocPages}
	if allocCached {
		req.Flags |= types.FlagCached
	}
	if allocForce {
		req.Flags |= types.FlagPoolForceAlloc
	}
	if allocVMID != "" {
		v, err := secure.Parse(allocVMID)
		if err != nil {
			return err
		}
		req.VMID = v
	}

	e, err := buildEnv(newLogger())
	if err != nil {
		return err
	}
	defer e.Close()

	var results []allocResult
	for cycle := 1; cycle <= max(allocCycles, 1); cycle++ {
		var bufs []*system.Buffer
		for _, size := range sizes {
			req.Size = size
			buf, err := e.heap.Allocate(req)
			if err != nil {
				for _, b := range bufs {
					_ = e.heap.Free(b)
				}
				return fmt.Errorf("cycle %d: allocate %s: %w", cycle, report.Bytes(size), err)
			}
			bufs = append(bufs, buf)
			results = append(results, describe(cycle, buf))
		}
		for _, b := range bufs {
			if err := e.heap.Free(b); err != nil {
				return fmt.Errorf("cycle %d: free: %w", cycle, err)
			}
		}
	}

	st := e.heap.Stats()
	if jsonOut {
		return printJSON(w, struct {
			Allocations []allocResult `json:"allocations"`
			Stats       system.Stats  `json:"stats"`
		}{results, st})
	}
	for _, r := range results {
		orders := make([]string, len(r.Blocks))
		for i, b := range r.Blocks {
			orders[i] = fmt.Sprint(b.Order)
		}
		printInfo(w, "cycle %d: %-10s %3d blocks (%d fresh, %d pooled) orders [%s]\n",
			r.Cycle, report.Bytes(r.Size), len(r.Blocks), r.Fresh, r.Pooled, strings.Join(orders, " "))
		if len(r.Pages) > 0 {
			printVerbose(w, "  pages: %v\n", r.Pages)
		}
	}
	printInfo(w, "\n")
	return report.WriteText(w, st, report.Options{})
}

func describe(cycle int, buf *system.Buffer) allocResult {
	r := allocResult{Cycle: cycle, Size: buf.Size()}
	for _, b := range buf.Blocks() {
		r.Blocks = append(r.Blocks, blockView{PFN: uint64(b.PFN), Order: uint(b.Order), Pooled: b.FromPool})
		if b.FromPool {
			r.Pooled++
		} else {
			r.Fresh++
		}
	}
	for _, p := range buf.Pages() {
		r.Pages = append(r.Pages, uint64(p))
	}
	return r
}

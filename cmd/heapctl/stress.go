package main

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/pkg/types"
)

var (
	stressWorkers  int
	stressDuration time.Duration
	stressMaxSize  string
	stressHold     int
	stressSecure   float64
	stressSeed     uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressWorkers, "workers", 8, "Concurrent workers")
	cmd.Flags().DurationVar(&stressDuration, "duration", 2*time.Second, "How long to run")
	cmd.Flags().StringVar(&stressMaxSize, "max-size", "2M", "Largest request size")
	cmd.Flags().IntVar(&stressHold, "hold", 4, "Buffers each worker keeps live")
	cmd.Flags().Float64Var(&stressSecure, "secure-ratio", 0, "Fraction of requests for a secure VM")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent random allocation workload",
		Long: `The stress command runs workers that allocate random-sized buffers, keep a
few alive, and free the oldest. It reports throughput, failures and the
final pool residency, and verifies that no pages were lost.

Example:
  heapctl stress --workers 16 --duration 5s
  heapctl stress --secure-ratio 0.25 --max-size 8M`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type stressResult struct {
	Allocs   int64        `json:"allocs"`
	Failures int64        `json:"failures"`
	Pages    int64        `json:"pages"`
	Elapsed  string       `json:"elapsed"`
	Stats    system.Stats `json:"stats"`
}

// errLostPages reports pages neither pooled, in use, nor free after a run.
var errLostPages = errors.New("page accounting mismatch after stress run")

func runStress(ctx context.Context, w io.Writer) error {
	maxSize, err := parseSize(stressMaxSize)
	if err != nil {
		return err
	}
	e, err := buildEnv(newLogger())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(ctx, stressDuration)
	defer cancel()

	vmids := secure.All()
	var allocs, failures, pages atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := range max(stressWorkers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(stressSeed, uint64(i)))
			var live []*system.Buffer
			defer func() {
				for _, b := range live {
					_ = e.heap.Free(b)
				}
			}()
			for ctx.Err() == nil {
				req := system.Request{Size: 1 + rng.Int64N(maxSize)}
				if rng.IntN(2) == 0 {
					req.Flags |= types.FlagCached
				}
				if rng.Float64() < stressSecure {
					req.VMID = vmids[rng.IntN(len(vmids))]
				}
				buf, err := e.heap.Allocate(req)
				if err != nil {
					failures.Add(1)
					continue
				}
				allocs.Add(1)
				pages.Add(buf.PageCount())
				live = append(live, buf)
				if len(live) > stressHold {
					_ = e.heap.Free(live[0])
					live = live[1:]
				}
			}
		}()
	}
	wg.Wait()

	st := e.heap.Stats()
	res := stressResult{
		Allocs:   allocs.Load(),
		Failures: failures.Load(),
		Pages:    pages.Load(),
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
		Stats:    st,
	}
	if jsonOut {
		if err := printJSON(w, res); err != nil {
			return err
		}
	} else {
		printInfo(w, "%d allocations (%s) in %s, %d failures\n\n",
			res.Allocs, report.Bytes(format.PagesToBytes(res.Pages)), res.Elapsed, res.Failures)
		if err := report.WriteText(w, st, report.Options{}); err != nil {
			return err
		}
	}

	// Boost refill loops keep running, so only tier-less runs balance exactly.
	if len(st.Tiers) == 0 && (st.InUsePages != 0 || st.CachedPages+st.Memory.FreePages != st.Memory.TotalPages) {
		return errLostPages
	}
	return nil
}

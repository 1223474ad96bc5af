package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/pageheap/heap/boost"
	"github.com/joshuapare/pageheap/heap/order"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/pool"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/buf"
	"github.com/joshuapare/pageheap/internal/format"
)

// fileConfig is the YAML form of a heap configuration.
type fileConfig struct {
	ArenaPages     int64        `yaml:"arena_pages"`
	HighmemStart   uint64       `yaml:"highmem_start"`
	HeapBacked     bool         `yaml:"heap_backed"`
	Orders         []uint       `yaml:"orders"`
	LowWaterPages  *int64       `yaml:"low_water_pages"`
	WarmFillPages  int64        `yaml:"warm_fill_pages"`
	Secure         *bool        `yaml:"secure"`
	SecureVMIDs    []string     `yaml:"secure_vmids"`
	SyncPooled     bool         `yaml:"sync_pooled"`
	NodeCacheLimit int          `yaml:"node_cache_limit"`
	TotalRAMPages  int64        `yaml:"total_ram_pages"`
	Boost          []boostEntry `yaml:"boost"`
}

type boostEntry struct {
	Name          string `yaml:"name"`
	CapacityPages int64  `yaml:"capacity_pages"`
	MinBytes      int64  `yaml:"min_bytes"`
	Domain        string `yaml:"domain"`
}

// loadConfig reads path, or returns an empty config when path is empty.
func loadConfig(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return fc, nil
}

// env is a heap built for one command run.
type env struct {
	mem   *physmem.Allocator
	heap  *system.Heap
	tiers []*boost.Pool
	stop  context.CancelFunc
}

func (e *env) Close() {
	e.stop()
	_ = e.heap.Close()
	for _, t := range e.tiers {
		t.Drain()
	}
	_ = e.mem.Close()
}

// buildEnv merges the config file with the global flags and constructs
// the page allocator, boost tiers and heap. Boost refill loops run until
// Close.
func buildEnv(log *slog.Logger) (*env, error) {
	fc, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if arenaPages > 0 {
		fc.ArenaPages = arenaPages
	}

	mem, err := physmem.New(physmem.Config{
		Pages:        fc.ArenaPages,
		HighmemStart: physmem.PFN(fc.HighmemStart),
		HeapBacked:   fc.HeapBacked,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page allocator: %w", err)
	}

	cfg, err := heapConfig(fc, mem.TotalPages())
	if err != nil {
		_ = mem.Close()
		return nil, err
	}
	cfg.Logger = log

	ctx, cancel := context.WithCancel(context.Background())
	e := &env{mem: mem, stop: cancel}
	for _, be := range fc.Boost {
		d, err := parseDomain(be.Domain)
		if err != nil {
			cancel()
			_ = mem.Close()
			return nil, fmt.Errorf("boost %q: %w", be.Name, err)
		}
		t := boost.New(be.Name, mem, cfg.Orders, boost.Options{
			CapacityPages: be.CapacityPages,
			MinBytes:      be.MinBytes,
			Domain:        d,
			Syncer:        cfg.Syncer,
			Logger:        log,
		})
		if err := t.Refill(ctx); err != nil {
			cancel()
			_ = mem.Close()
			return nil, err
		}
		go func() { _ = t.Run(ctx) }()
		e.tiers = append(e.tiers, t)
		cfg.Tiers = append(cfg.Tiers, t)
	}

	h, err := system.New(mem, cfg)
	if err != nil {
		cancel()
		_ = mem.Close()
		return nil, fmt.Errorf("failed to create heap: %w", err)
	}
	e.heap = h
	return e, nil
}

// heapConfig maps fc and the global flags onto a system.Config.
func heapConfig(fc *fileConfig, totalPages int64) (*system.Config, error) {
	cfg := system.DefaultConfig()

	orders := fc.Orders
	if orderList != "" {
		parsed, err := parseOrders(orderList)
		if err != nil {
			return nil, err
		}
		orders = parsed
	}
	if len(orders) > 0 {
		list := make([]order.Order, len(orders))
		for i, o := range orders {
			list[i] = order.Order(o)
		}
		tbl, err := order.New(list...)
		if err != nil {
			return nil, err
		}
		cfg.Orders = tbl
	}

	// The production floor would pin most of a small arena; scale it.
	cfg.LowWaterPages = min(cfg.LowWaterPages, totalPages/4)
	cfg.WarmFillPages = min(cfg.WarmFillPages, totalPages/4)
	if fc.LowWaterPages != nil {
		cfg.LowWaterPages = *fc.LowWaterPages
	}
	if lowWater >= 0 {
		cfg.LowWaterPages = lowWater
	}
	if fc.WarmFillPages > 0 {
		cfg.WarmFillPages = fc.WarmFillPages
	}
	if fc.Secure != nil {
		cfg.SecureCapable = *fc.Secure
	}
	for _, name := range fc.SecureVMIDs {
		v, err := secure.Parse(name)
		if err != nil {
			return nil, err
		}
		cfg.SecureVMIDs = append(cfg.SecureVMIDs, v)
	}
	cfg.SyncPooledForDevice = fc.SyncPooled
	cfg.NodeCacheLimit = fc.NodeCacheLimit
	cfg.TotalRAMPages = fc.TotalRAMPages
	return cfg, nil
}

func parseOrders(s string) ([]uint, error) {
	var out []uint
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid order %q: %w", part, err)
		}
		out = append(out, uint(n))
	}
	return out, nil
}

func parseDomain(s string) (pool.Domain, error) {
	switch strings.ToLower(s) {
	case "", "cached":
		return pool.CachedDomain, nil
	case "uncached":
		return pool.UncachedDomain, nil
	}
	v, err := secure.Parse(s)
	if err != nil {
		return pool.Domain{}, err
	}
	return pool.SecureDomain(v), nil
}

// parseSize parses a byte size with an optional unit: plain bytes, K/M/G
// (binary), or P for pages.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "KIB"), strings.HasSuffix(s, "K"):
		mult = format.KiB
	case strings.HasSuffix(s, "MIB"), strings.HasSuffix(s, "M"):
		mult = format.MiB
	case strings.HasSuffix(s, "GIB"), strings.HasSuffix(s, "G"):
		mult = format.GiB
	case strings.HasSuffix(s, "P"):
		mult = format.PageSize
	}
	num := strings.TrimRight(s, "KMGIBP")
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	size, ok := buf.MulOverflowSafe(n, mult)
	if !ok {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return size, nil
}

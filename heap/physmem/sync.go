package physmem

import "sync/atomic"

// DeviceSyncer makes CPU writes to a physical range visible to devices.
// It is invoked for every block fetched fresh from the allocator before the
// block is handed to a consumer.
type DeviceSyncer interface {
	SyncForDevice(addr uint64, length int64)
}

// NopSyncer is a DeviceSyncer for coherent systems.
type NopSyncer struct{}

// SyncForDevice implements DeviceSyncer.
func (NopSyncer) SyncForDevice(uint64, int64) {}

// CountingSyncer records how many ranges and bytes were synced.
type CountingSyncer struct {
	calls atomic.Int64
	bytes atomic.Int64
}

// SyncForDevice implements DeviceSyncer.
func (c *CountingSyncer) SyncForDevice(_ uint64, length int64) {
	c.calls.Add(1)
	c.bytes.Add(length)
}

// Calls returns the number of SyncForDevice calls.
func (c *CountingSyncer) Calls() int64 { return c.calls.Load() }

// Bytes returns the total number of bytes synced.
func (c *CountingSyncer) Bytes() int64 { return c.bytes.Load() }

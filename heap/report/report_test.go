package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/system"
)

func sampleStats() system.Stats {
	return system.Stats{
		CachedPages:   51200,
		InUsePages:    272,
		LowWaterPages: 51200,
		Pools: []system.PoolStats{
			{Domain: "cached", Order: 9, LowBlocks: 100, Pages: 51200},
			{Domain: "uncached", Order: 4},
		},
		Tiers:  []system.TierStats{{Name: "camera", Pages: 1024}},
		Memory: physmem.Stats{TotalPages: 65536, FreePages: 14064},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleStats(), Options{}))
	out := buf.String()

	assert.Contains(t, out, "Pooled:    51,200 pages (200.0 MiB)")
	assert.Contains(t, out, "In use:    272 pages (1.1 MiB)")
	assert.Contains(t, out, "14,064 of 65,536 pages free")
	assert.Contains(t, out, "cached")
	assert.NotContains(t, out, "uncached", "empty pools hidden by default")
	assert.Contains(t, out, "camera")
}

func TestWriteTextLocale(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleStats(), Options{Empty: true, Tag: language.German}))
	assert.Contains(t, buf.String(), "51.200 pages")
	assert.Contains(t, buf.String(), "uncached")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleStats()))

	var got system.Stats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, sampleStats(), got)
	assert.Contains(t, buf.String(), `"cached_pages": 51200`)
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "4.0 KiB", Bytes(4096))
	assert.Equal(t, "1.5 GiB", Bytes(3<<29))
}

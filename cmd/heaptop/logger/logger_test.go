package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	require.NoError(t, Init(Options{}))
	Info("dropped")
}

func TestInitWritesAndCleansOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	old := filepath.Join(dir, "heaptop-2026-01-01.log")
	recent := filepath.Join(dir, "heaptop-2026-03-01.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Level: slog.LevelDebug, Now: func() time.Time { return now }}))
	t.Cleanup(func() { _ = Init(Options{}) })
	Debug("hello", "k", 1)

	require.NoFileExists(t, old)
	require.FileExists(t, recent)
	require.FileExists(t, other)

	data, err := os.ReadFile(filepath.Join(dir, "heaptop-2026-03-10.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
}

func TestBeginSessionTagsRecords(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Now: func() time.Time { return now }}))
	t.Cleanup(func() { _ = Init(Options{}) })

	id := BeginSession(2048, 4, now)
	require.NotEmpty(t, id)
	Info("tagged")

	data, err := os.ReadFile(filepath.Join(dir, "heaptop-2026-03-10.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"session":{"id":"`+id+`","arena_pages":2048,"workers":4}`)
}

func TestSamplerThrottlesAndSkipsRepeats(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Level: slog.LevelDebug, Now: func() time.Time { return now }}))
	t.Cleanup(func() { _ = Init(Options{}) })

	clock := now
	s := &Sampler{Every: 10 * time.Second, Now: func() time.Time { return clock }}
	v := Sample{CachedPages: 272, InUsePages: 16, FreePages: 1760, Allocs: 3, Frees: 2}

	require.True(t, s.Record(v), "first sample is always written")
	clock = clock.Add(time.Second)
	v.Allocs++
	require.False(t, s.Record(v), "inside the interval")
	clock = clock.Add(10 * time.Second)
	require.True(t, s.Record(v))
	clock = clock.Add(10 * time.Second)
	require.False(t, s.Record(v), "unchanged since last write")

	data, err := os.ReadFile(filepath.Join(dir, "heaptop-2026-03-10.log"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), `"msg":"heap sample"`))
	require.Contains(t, string(data), `"allocs":4`)
}

func TestLogDay(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	got, ok := logDay(logName(day))
	require.True(t, ok)
	require.True(t, got.Equal(day))

	_, ok = logDay("heaptop-yesterday.log")
	require.False(t, ok)
	_, ok = logDay("notes.txt")
	require.False(t, ok)
}

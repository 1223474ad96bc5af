package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/internal/format"
)

func TestHelpToggle(t *testing.T) {
	h := NewTestHelper(t)
	h.Send(tea.WindowSizeMsg{Width: 120, Height: 40})
	require.False(t, h.model.showHelp)

	h.SendKeyRune('?')
	require.True(t, h.model.showHelp)
	require.Contains(t, h.model.View(), "Keyboard Shortcuts")

	// Keys other than help/esc/quit are swallowed while help is open.
	h.SendKeyRune('p')
	require.False(t, h.sess.work.Paused())

	h.SendKey(tea.KeyEsc)
	require.False(t, h.model.showHelp)
	require.NotContains(t, h.model.View(), "Keyboard Shortcuts")
}

func TestQuit(t *testing.T) {
	h := NewTestHelper(t)
	cmd := h.SendKeyRune('q')
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPauseToggle(t *testing.T) {
	h := NewTestHelper(t)
	h.SendKeyRune('p')
	require.True(t, h.sess.work.Paused())
	require.Contains(t, h.model.renderSummary(), "paused")

	h.SendKeyRune('p')
	require.False(t, h.sess.work.Paused())
	require.Contains(t, h.model.renderSummary(), "running")
}

func TestTickRefreshesPoolTable(t *testing.T) {
	h := NewTestHelper(t)
	h.Churn(272)

	cmd := h.Send(tickMsg(time.Now()))
	require.NotNil(t, cmd, "tick must reschedule itself")
	require.Equal(t, int64(272), h.model.stats.CachedPages)

	var found []string
	for _, row := range h.model.table.Rows() {
		if row[0] == "cached" && row[4] != "0" {
			found = append(found, row[1]+":"+row[4])
		}
	}
	require.Equal(t, []string{"4:272"}, found)
}

func TestCopyReport(t *testing.T) {
	h := NewTestHelper(t)
	h.Churn(16)
	h.Send(tickMsg(time.Now()))

	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { copyToClipboard = orig })

	cmd := h.SendKeyRune('c')
	require.NotNil(t, cmd)
	require.Contains(t, h.model.statusMessage, "Copied")
	require.Contains(t, copied, "Pooled:")
	require.Contains(t, copied, "cached")

	h.Send(clearStatusMsg{})
	require.Empty(t, h.model.statusMessage)
}

func TestCopyReportFailure(t *testing.T) {
	h := NewTestHelper(t)
	orig := copyToClipboard
	copyToClipboard = func(string) error { return errors.New("no display") }
	t.Cleanup(func() { copyToClipboard = orig })

	h.SendKeyRune('c')
	require.Equal(t, "Failed to copy report", h.model.statusMessage)
}

func TestShrinkReleasesAboveLowWater(t *testing.T) {
	h := NewTestHelper(t)
	h.Churn(1024)
	h.Send(tickMsg(time.Now()))
	require.Equal(t, int64(1024), h.model.stats.CachedPages)
	require.Equal(t, int64(512), h.model.stats.LowWaterPages)

	cmd := h.SendKeyRune('S')
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, shrinkDoneMsg{freed: 512}, msg)

	h.Send(msg)
	require.Equal(t, "Released 512 pages", h.model.statusMessage)
	require.Equal(t, int64(512), h.model.stats.CachedPages)

	// At the floor nothing more is released.
	require.Equal(t, shrinkDoneMsg{freed: 0}, shrinkCmd(h.sess.heap, physmem.Hint{}, 4)())
}

func TestFillWarmsPools(t *testing.T) {
	h := NewTestHelper(t)
	cmd := h.SendKeyRune('f')
	require.NotNil(t, cmd)
	require.Equal(t, "Filling pools...", h.model.statusMessage)

	msg := cmd()
	require.Equal(t, fillDoneMsg{}, msg)
	h.Send(msg)
	require.Equal(t, "Pools filled", h.model.statusMessage)
	require.GreaterOrEqual(t, h.model.stats.CachedPages, int64(512))
}

func TestViewRendersSummary(t *testing.T) {
	h := NewTestHelper(t)
	h.Send(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.Churn(16)
	h.Send(tickMsg(time.Now()))

	view := h.model.View()
	require.Contains(t, view, "Page Heap Monitor")
	require.Contains(t, view, "Arena: 2048 pages (8.0 MiB)")
	require.Contains(t, view, "Pooled")
	require.Contains(t, view, "Domain")
}

func TestTableNavigation(t *testing.T) {
	h := NewTestHelper(t)
	h.Send(tea.WindowSizeMsg{Width: 120, Height: 40})
	require.Equal(t, 0, h.model.table.Cursor())

	h.SendKeyRune('j')
	require.Equal(t, 1, h.model.table.Cursor())
	h.SendKey(tea.KeyUp)
	require.Equal(t, 0, h.model.table.Cursor())
}

func TestWorkloadRunsAndStops(t *testing.T) {
	h := NewTestHelper(t)
	w := h.sess.work
	w.opts.Pace = time.Millisecond
	w.opts.MaxBytes = format.PagesToBytes(64)

	w.Start(t.Context())
	require.Eventually(t, func() bool { return w.allocs.Load() >= 20 }, 5*time.Second, 5*time.Millisecond)
	w.Stop()

	require.Equal(t, w.allocs.Load(), w.frees.Load())
	st := h.sess.heap.Stats()
	require.Zero(t, st.InUsePages)
	require.Equal(t, st.Memory.TotalPages, st.CachedPages+st.Memory.FreePages)
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"--arena-pages=4096", "--workers=2", "--max-pages=16", "--secure-ratio=0.5", "--seed=9", "--hold=3"})
	require.NoError(t, err)
	require.Equal(t, int64(4096), opts.ArenaPages)
	require.Equal(t, 2, opts.Workload.Workers)
	require.Equal(t, 3, opts.Workload.Hold)
	require.Equal(t, format.PagesToBytes(16), opts.Workload.MaxBytes)
	require.InDelta(t, 0.5, opts.Workload.SecureRatio, 1e-9)
	require.Equal(t, uint64(9), opts.Workload.Seed)

	for _, bad := range []string{"stray", "--workers=x", "--frobnicate=1"} {
		_, err := parseArgs([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestHelpListsEveryBinding(t *testing.T) {
	help := newHelpView(DefaultKeyMap()).View()
	for _, b := range DefaultKeyMap().helpBindings() {
		require.True(t, strings.Contains(help, b.Help().Desc), b.Help().Desc)
	}
}

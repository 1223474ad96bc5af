package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/pageheap/cmd/heaptop/logger"
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/format"
)

const (
	refreshInterval = 500 * time.Millisecond
	sampleInterval  = 10 * time.Second
	statusTimeout   = 2 * time.Second

	// chromeHeight is the rows taken by header, summary and status bar.
	chromeHeight = 14
)

// Messages
type (
	tickMsg        time.Time
	clearStatusMsg struct{}
	fillDoneMsg    struct{ err error }
	shrinkDoneMsg  struct{ freed int }
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// Model is the heaptop UI state.
type Model struct {
	sess *session
	keys KeyMap

	table   table.Model
	stats   system.Stats
	sampler *logger.Sampler

	width    int
	height   int
	showHelp bool

	statusMessage string
}

// NewModel creates a model watching s.
func NewModel(s *session) Model {
	t := table.New(
		table.WithColumns(poolColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor).
		Bold(false)
	t.SetStyles(styles)

	m := Model{
		sess:    s,
		keys:    DefaultKeyMap(),
		table:   t,
		sampler: &logger.Sampler{Every: sampleInterval},
	}
	m.refresh()
	return m
}

func poolColumns() []table.Column {
	return []table.Column{
		{Title: "Domain", Width: 22},
		{Title: "Order", Width: 5},
		{Title: "Low", Width: 7},
		{Title: "High", Width: 7},
		{Title: "Pages", Width: 9},
		{Title: "Size", Width: 10},
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func clearStatusAfter() tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(m.height-chromeHeight, 3))
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil

	case fillDoneMsg:
		if msg.err != nil {
			m.statusMessage = errorStyle.Render("Fill failed: " + msg.err.Error())
		} else {
			m.statusMessage = "Pools filled"
		}
		m.refresh()
		return m, clearStatusAfter()

	case shrinkDoneMsg:
		m.statusMessage = fmt.Sprintf("Released %d pages", msg.freed)
		m.refresh()
		return m, clearStatusAfter()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Esc):
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		paused := !m.sess.work.Paused()
		m.sess.work.SetPaused(paused)
		logger.Debug("workload toggled", "paused", paused)
		return m, nil

	case key.Matches(msg, m.keys.Fill):
		m.statusMessage = "Filling pools..."
		return m, fillCmd(m.sess.heap)

	case key.Matches(msg, m.keys.Shrink):
		return m, shrinkCmd(m.sess.heap, physmem.Hint{}, 4)

	case key.Matches(msg, m.keys.Drain):
		return m, shrinkCmd(m.sess.heap, physmem.Hint{Kswapd: true}, 1)

	case key.Matches(msg, m.keys.Copy):
		if err := copyToClipboard(m.reportText()); err != nil {
			logger.Warn("clipboard copy failed", "error", err)
			m.statusMessage = "Failed to copy report"
		} else {
			m.statusMessage = "Copied report to clipboard"
		}
		return m, clearStatusAfter()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// fillCmd warms the pools to their configured target.
func fillCmd(h *system.Heap) tea.Cmd {
	return func() tea.Msg {
		return fillDoneMsg{err: h.Fill(context.Background(), 0)}
	}
}

// shrinkCmd releases 1/div of what the heap reports as reclaimable.
func shrinkCmd(h *system.Heap, hint physmem.Hint, div int) tea.Cmd {
	return func() tea.Msg {
		eligible := h.Shrink(hint, 0)
		n := eligible / div
		if n == 0 {
			n = eligible
		}
		freed := 0
		if n > 0 {
			freed = h.Shrink(hint, n)
		}
		logger.Info("manual shrink", "eligible", eligible, "requested", n, "freed", freed)
		return shrinkDoneMsg{freed: freed}
	}
}

// refresh snapshots the heap and rebuilds the pool table.
func (m *Model) refresh() {
	m.stats = m.sess.heap.Stats()
	rows := make([]table.Row, 0, len(m.stats.Pools))
	for _, p := range m.stats.Pools {
		rows = append(rows, table.Row{
			p.Domain,
			strconv.Itoa(int(p.Order)),
			strconv.Itoa(p.LowBlocks),
			strconv.Itoa(p.HighBlocks),
			strconv.FormatInt(p.Pages, 10),
			report.Bytes(format.PagesToBytes(p.Pages)),
		})
	}
	m.table.SetRows(rows)

	w := m.sess.work
	m.sampler.Record(logger.Sample{
		CachedPages: m.stats.CachedPages,
		InUsePages:  m.stats.InUsePages,
		FreePages:   m.stats.Memory.FreePages,
		Allocs:      w.allocs.Load(),
		Frees:       w.frees.Load(),
		Failures:    w.failures.Load(),
	})
}

func (m Model) reportText() string {
	var buf bytes.Buffer
	if err := report.WriteText(&buf, m.stats, report.Options{}); err != nil {
		return err.Error()
	}
	return buf.String()
}

// Close releases the session.
func (m Model) Close() error {
	return m.sess.Close()
}

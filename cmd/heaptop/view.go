package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/internal/format"
)

// View renders the entire UI
func (m Model) View() string {
	if m.showHelp {
		// Rebuilt each render so the background reflects the current model.
		help := overlay.New(
			newHelpView(m.keys),
			NewMainViewModel(&m),
			overlay.Center,
			overlay.Center,
			0,
			0,
		)
		return help.View()
	}

	return m.renderMain()
}

func (m Model) renderMain() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderSummary(),
		paneStyle.Render(m.table.View()),
		m.renderStatus(),
	)
}

// renderHeader renders the title and arena size
func (m Model) renderHeader() string {
	total := m.stats.Memory.TotalPages
	arena := fmt.Sprintf("Arena: %d pages (%s)", total, report.Bytes(format.PagesToBytes(total)))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		headerStyle.Render("Page Heap Monitor"),
		"  ",
		infoStyle.Render(arena),
	)
}

// renderSummary renders the residency gauges
func (m Model) renderSummary() string {
	st := m.stats
	line := func(label string, pages int64) string {
		return labelStyle.Render(label) +
			valueStyle.Render(fmt.Sprintf("%d pages", pages)) +
			infoStyle.Render(" "+report.Bytes(format.PagesToBytes(pages)))
	}

	lines := []string{
		line("Pooled", st.CachedPages),
		line("In use", st.InUsePages),
		line("Low water", st.LowWaterPages),
		line("Free", st.Memory.FreePages),
	}
	for _, t := range st.Tiers {
		lines = append(lines, line("Tier "+t.Name, t.Pages))
	}

	w := m.sess.work
	state := runningStyle.Render("running")
	if w.Paused() {
		state = pausedStyle.Render("paused")
	}
	lines = append(lines, labelStyle.Render("Workload")+state+
		infoStyle.Render(fmt.Sprintf("  %d allocs, %d frees, %d failures, %d reclaims",
			w.allocs.Load(), w.frees.Load(), w.failures.Load(), st.Memory.Reclaims)))

	return strings.Join(lines, "\n")
}

// renderStatus renders the bottom status bar
func (m Model) renderStatus() string {
	left := "? help  p pause  f fill  s shrink  c copy  q quit"
	if m.statusMessage != "" {
		left = statusMessageStyle.Render(m.statusMessage)
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return statusStyle.Width(width).Render(left)
}

package main

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// MainViewModel wraps the main UI for use as overlay background
type MainViewModel struct {
	model *Model
}

func NewMainViewModel(m *Model) *MainViewModel {
	return &MainViewModel{model: m}
}

func (m *MainViewModel) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the parent Model handles all messages.
func (m *MainViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m *MainViewModel) View() string {
	return m.model.renderMain()
}

// helpView is the overlay foreground listing key bindings.
type helpView struct {
	keys KeyMap
}

func newHelpView(k KeyMap) *helpView {
	return &helpView{keys: k}
}

func (h *helpView) Init() tea.Cmd { return nil }

func (h *helpView) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return h, nil }

func (h *helpView) View() string {
	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, kb := range h.keys.helpBindings() {
		hb := kb.Help()
		b.WriteString(helpKeyStyle.Render(hb.Key))
		b.WriteString(helpDescStyle.Render(hb.Desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpDescStyle.Render("Press ? or esc to close"))
	return helpBoxStyle.Render(b.String())
}

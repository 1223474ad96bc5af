package main

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Workload
	Pause  key.Binding
	Fill   key.Binding
	Shrink key.Binding
	Drain  key.Binding

	// Commands
	Copy key.Binding
	Help key.Binding
	Esc  key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause workload"),
		),
		Fill: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "warm fill pools"),
		),
		Shrink: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "shrink a quarter of the pools"),
		),
		Drain: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "shrink everything above low water"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy report"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// helpBindings lists the bindings shown in the help overlay, in order.
func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Pause, k.Fill, k.Shrink, k.Drain, k.Copy, k.Help, k.Quit}
}

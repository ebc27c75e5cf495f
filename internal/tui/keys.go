package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the reward catalog TUI.
type KeyMap struct {
	// List navigation.
	Up       key.Binding
	Down     key.Binding
	PrevPage key.Binding
	NextPage key.Binding

	// Catalog actions on the selected row.
	Add       key.Binding
	Edit      key.Binding
	Duplicate key.Binding
	Preview   key.Binding
	Delete    key.Binding
	Refresh   key.Binding

	// Search bar.
	Search      key.Binding // Focus the search input.
	SearchClear key.Binding // Clear the term and leave the search input.
	SearchDone  key.Binding // Keep the term and leave the search input.

	// Form.
	NextField key.Binding
	PrevField key.Binding
	Toggle    key.Binding // Flip a toggle or cycle the store forward.
	CycleBack key.Binding // Cycle the store backward.
	Submit    key.Binding
	Cancel    key.Binding

	// Confirmation modal.
	Confirm key.Binding
	Decline key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("h", "left", "pgup"),
		key.WithHelp("h/←", "prev page"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("l", "right", "pgdown"),
		key.WithHelp("l/→", "next page"),
	),
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Duplicate: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "duplicate"),
	),
	Preview: key.NewBinding(
		key.WithKeys("enter", "p"),
		key.WithHelp("enter", "preview"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "delete"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	SearchClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	SearchDone: key.NewBinding(
		key.WithKeys("enter", "tab"),
		key.WithHelp("enter", "done"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-tab", "prev field"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "right"),
		key.WithHelp("space", "toggle"),
	),
	CycleBack: key.NewBinding(
		key.WithKeys("left"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s", "enter"),
		key.WithHelp("enter", "save"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "yes"),
	),
	Decline: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n", "no"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) listHelp() []key.Binding {
	return []key.Binding{k.Search, k.Add, k.Edit, k.Duplicate, k.Preview, k.Delete, k.PrevPage, k.NextPage, k.Refresh, k.Quit}
}

func (k KeyMap) formHelp() []key.Binding {
	return []key.Binding{k.NextField, k.PrevField, k.Toggle, k.Submit, k.Cancel}
}

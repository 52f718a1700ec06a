package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the report and history views respond to.
type KeyMap struct {
	Quit        key.Binding
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Enter       key.Binding
	Expand      key.Binding
	Collapse    key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Select      key.Binding
	SelectAll   key.Binding
	ClearSel    key.Binding
	PrevColumn  key.Binding
	NextColumn  key.Binding
	Sort        key.Binding
	Columns     key.Binding
	Granularity key.Binding
	Period      key.Binding
	Realtime    key.Binding
	Refresh     key.Binding
	Detail      key.Binding
	Tab         key.Binding
	Escape      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Top:         key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "top")),
		Bottom:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "bottom")),
		Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "toggle group")),
		Expand:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "expand")),
		Collapse:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
		ExpandAll:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Select:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		SelectAll:   key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "select all")),
		ClearSel:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear selection")),
		PrevColumn:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev column")),
		NextColumn:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next column")),
		Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Columns:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "columns")),
		Granularity: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "granularity")),
		Period:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "period")),
		Realtime:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "realtime")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Detail:      key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "detail")),
		Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "history")),
		Escape:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

package tui

import (
	"github.com/nixlim/grouptop/internal/period"
	"github.com/nixlim/grouptop/internal/selection"
)

type menuKind int

const (
	menuColumns menuKind = iota
	menuGranularity
)

// MenuState tracks the interactive column and granularity menus.
type MenuState struct {
	Active  bool
	Kind    menuKind
	Cursor  int
	Options []MenuOption
}

// MenuOption represents one row of a menu.
type MenuOption struct {
	Label   string
	Key     string
	Enabled bool
}

// Title is the heading drawn above the options.
func (s MenuState) Title() string {
	if s.Kind == menuGranularity {
		return "Granularity"
	}
	return "Columns"
}

// Footer lists the keys the open menu accepts.
func (s MenuState) Footer() string {
	if s.Kind == menuGranularity {
		return "Enter: Apply  Esc: Close"
	}
	return "Enter: Toggle  Esc: Close"
}

// Selected returns the option under the cursor.
func (s MenuState) Selected() (MenuOption, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Options) {
		return MenuOption{}, false
	}
	return s.Options[s.Cursor], true
}

// NewColumnMenu lists every column in canonical order, checked when visible.
func NewColumnMenu(cols selection.Columns) MenuState {
	m := MenuState{Active: true, Kind: menuColumns}
	for _, c := range cols.All {
		m.Options = append(m.Options, MenuOption{Label: c, Key: c, Enabled: cols.IsVisible(c)})
	}
	return m
}

// NewGranularityMenu lists the enumeration with the current value pinned
// first and checked.
func NewGranularityMenu(current string) MenuState {
	m := MenuState{Active: true, Kind: menuGranularity}
	for _, g := range period.GranularityOptions(period.Granularity(current)) {
		m.Options = append(m.Options, MenuOption{Label: g.Label(), Key: string(g), Enabled: string(g) == current})
	}
	return m
}

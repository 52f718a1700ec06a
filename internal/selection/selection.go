// Package selection tracks row selection, the active sort column and column
// visibility. All three are independent of the group tree and of scrolling.
//
// Every type has value semantics: mutators return a new value and leave the
// receiver untouched, so a renderer holding an older value never observes a
// half-applied change.
package selection

import "sort"

// Set is a set of selected node keys.
type Set struct {
	ids map[string]struct{}
}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s Set) clone() Set {
	c := Set{ids: make(map[string]struct{}, len(s.ids)+1)}
	for id := range s.ids {
		c.ids[id] = struct{}{}
	}
	return c
}

// Toggle adds id when absent and removes it when present. Selecting a group
// root does not select its children.
func (s Set) Toggle(id string) Set {
	c := s.clone()
	if _, ok := c.ids[id]; ok {
		delete(c.ids, id)
	} else {
		c.ids[id] = struct{}{}
	}
	return c
}

// SelectAll adds every id in visible.
func (s Set) SelectAll(visible []string) Set {
	c := s.clone()
	for _, id := range visible {
		c.ids[id] = struct{}{}
	}
	return c
}

// Clear returns an empty set.
func (s Set) Clear() Set {
	return NewSet()
}

// Has reports whether id is selected.
func (s Set) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the single active sort column.
type SortState struct {
	Column    string
	Direction Direction
}

// By returns the state after the user picks column. A new column starts
// ascending; picking the active column flips the direction.
func (s SortState) By(column string) SortState {
	if column != s.Column {
		return SortState{Column: column, Direction: Asc}
	}
	if s.Direction == Asc {
		return SortState{Column: column, Direction: Desc}
	}
	return SortState{Column: column, Direction: Asc}
}

// Active reports whether a sort column is set.
func (s SortState) Active() bool {
	return s.Column != ""
}

// Indicator is the header glyph for column.
func (s SortState) Indicator(column string) string {
	if column != s.Column {
		return ""
	}
	if s.Direction == Desc {
		return "▼"
	}
	return "▲"
}

// Columns holds the canonical column list and the visible subset.
type Columns struct {
	All      []string
	Selected []string
}

// NewColumns builds a column set, keeping only selected entries that appear
// in all, in canonical order. An empty selection shows every column.
func NewColumns(all, selected []string) Columns {
	c := Columns{All: append([]string(nil), all...)}
	if len(selected) == 0 {
		c.Selected = append([]string(nil), all...)
		return c
	}
	c.Selected = filter(c.All, toSet(selected))
	return c
}

// Toggle shows or hides column. A re-enabled column returns to its canonical
// position. The last visible column cannot be hidden, and unknown columns are
// ignored.
func (c Columns) Toggle(column string) Columns {
	if indexOf(c.All, column) < 0 {
		return c
	}
	on := toSet(c.Selected)
	if _, ok := on[column]; ok {
		if len(c.Selected) == 1 {
			return c
		}
		delete(on, column)
	} else {
		on[column] = struct{}{}
	}
	return Columns{All: c.All, Selected: filter(c.All, on)}
}

// Visible returns the visible columns in canonical order.
func (c Columns) Visible() []string {
	return append([]string(nil), c.Selected...)
}

// IsVisible reports whether column is shown.
func (c Columns) IsVisible(column string) bool {
	return indexOf(c.Selected, column) >= 0
}

func filter(all []string, on map[string]struct{}) []string {
	out := make([]string, 0, len(on))
	for _, col := range all {
		if _, ok := on[col]; ok {
			out = append(out, col)
		}
	}
	return out
}

func toSet(cols []string) map[string]struct{} {
	m := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		m[c] = struct{}{}
	}
	return m
}

func indexOf(cols []string, col string) int {
	for i, c := range cols {
		if c == col {
			return i
		}
	}
	return -1
}

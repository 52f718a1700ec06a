// Package report holds the view state of one grouped report and the
// transitions that move it between fetches, scroll positions and expansion
// changes.
//
// State is a value. Every transition returns a new State and leaves the
// receiver untouched; trees are cloned before they are changed. A renderer
// holding a State therefore never sees a half-applied update.
package report

import (
	"time"

	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/selection"
	"github.com/nixlim/grouptop/internal/window"
)

// State is the complete view state of a report.
type State struct {
	Query engine.Query

	// Rows is the last successfully built response in input order.
	Rows    []grouptree.FlatRow
	Tree    *grouptree.Tree
	Visible []grouptree.VisibleRow

	Selection selection.Set
	Sort      selection.SortState
	Columns   selection.Columns
	Rules     format.Rules

	// Scroll geometry, all in terminal lines.
	ScrollOffset int
	Viewport     int
	RowHeight    int
	Buffer       int
	Cursor       int

	// Loading is true while a fetch is outstanding. Skeleton additionally
	// hides the previous tree because the query itself changed.
	Loading  bool
	Skeleton bool

	// Err replaces the table with an error state. Banner keeps the table
	// and reports a failure on top of stale data.
	Err    error
	Banner error

	LoadedAt   time.Time
	EmptyRange bool
}

// New returns the initial state for q.
func New(q engine.Query, columns selection.Columns, rules format.Rules, rowHeight, buffer int) State {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if q.SortBy != "" && q.SortOrder == "" {
		q.SortOrder = string(selection.Asc)
	}
	return State{
		Query:     q,
		Selection: selection.NewSet(),
		Sort:      selection.SortState{Column: q.SortBy, Direction: selection.Direction(q.SortOrder)},
		Columns:   columns,
		Rules:     rules,
		RowHeight: rowHeight,
		Buffer:    buffer,
	}
}

// HasData reports whether a tree is available to render.
func (s State) HasData() bool {
	return s.Tree != nil && !s.Skeleton && s.Err == nil
}

// BeginFetch marks a fetch as outstanding. A full change of the query shows
// the skeleton; a plain refetch keeps the previous tree on screen.
func (s State) BeginFetch(fullChange bool) State {
	s.Loading = true
	s.Skeleton = fullChange || s.Tree == nil
	return s
}

// ChangeQuery replaces the query for a full filter change. Selection and
// scroll are reset because they referred to the old rows.
func (s State) ChangeQuery(q engine.Query) State {
	s.Query = q
	s.Selection = s.Selection.Clear()
	s.ScrollOffset = 0
	s.Cursor = 0
	return s.BeginFetch(true)
}

// ApplyRows builds a fresh tree from rows. Expansion carries over from the
// previous tree by node key and the active sort is re-applied. A malformed
// response replaces the view with the error; no partial tree is kept.
func (s State) ApplyRows(rows []grouptree.FlatRow, emptyRange bool, at time.Time) State {
	tree, err := grouptree.Build(rows)
	s.Loading = false
	s.Skeleton = false
	if err != nil {
		s.Rows = nil
		s.Tree = nil
		s.Visible = nil
		s.Err = err
		s.Banner = nil
		return s
	}

	if s.Tree != nil {
		tree.ReapplyExpansion(s.Tree.ExpandedIDs())
	}
	if s.Sort.Active() {
		tree.SortSiblings(s.Sort.Column, grouptree.Direction(s.Sort.Direction))
	}

	s.Rows = rows
	s.Tree = tree
	s.Err = nil
	s.Banner = nil
	s.LoadedAt = at
	s.EmptyRange = emptyRange
	return s.reflow()
}

// ApplyError records a failed fetch. Input and malformed-tree errors always
// replace the view. Network errors keep a still valid tree and raise a
// banner; they only become the view state on first load or after a full
// query change.
func (s State) ApplyError(err error) State {
	keep := s.Tree != nil && !s.Skeleton && Classify(err) == KindNetwork
	s.Loading = false
	s.Skeleton = false
	if keep {
		s.Banner = err
		return s
	}
	s.Err = err
	s.Banner = nil
	s.Tree = nil
	s.Rows = nil
	s.Visible = nil
	return s
}

// Toggle expands or collapses the group under key. Collapsing a group above
// the viewport top moves the scroll offset by the hidden rows.
func (s State) Toggle(key string) (State, error) {
	if s.Tree == nil {
		return s, grouptree.ErrUnknownNode
	}
	tree := s.Tree.Clone()
	removed, err := tree.DescendantCount(key)
	if err != nil {
		return s, err
	}
	open, err := tree.Toggle(key)
	if err != nil {
		return s, err
	}

	if groupIdx := grouptree.IndexOf(s.Visible, key); !open && removed > 0 && groupIdx >= 0 {
		top := window.TopIndex(s.ScrollOffset, s.RowHeight)
		s.ScrollOffset = window.CollapseAdjust(s.ScrollOffset, s.RowHeight, top, groupIdx, removed)
		if s.Cursor > groupIdx && s.Cursor <= groupIdx+removed {
			s.Cursor = groupIdx
		} else if s.Cursor > groupIdx+removed {
			s.Cursor -= removed
		}
	}

	s.Tree = tree
	return s.reflow(), nil
}

// ToggleCursor toggles the group under the cursor.
func (s State) ToggleCursor() (State, error) {
	row, ok := s.CursorRow()
	if !ok {
		return s, nil
	}
	return s.Toggle(row.Key)
}

// ExpandAll opens every group.
func (s State) ExpandAll() State {
	if s.Tree == nil {
		return s
	}
	s.Tree = s.Tree.Clone()
	s.Tree.ExpandAll()
	return s.reflow()
}

// CollapseAll closes every group and scrolls back to the top.
func (s State) CollapseAll() State {
	if s.Tree == nil {
		return s
	}
	s.Tree = s.Tree.Clone()
	s.Tree.CollapseAll()
	s.ScrollOffset = 0
	s.Cursor = 0
	return s.reflow()
}

// SetGroupStates applies an externally held expansion map.
func (s State) SetGroupStates(states map[string]bool) State {
	if s.Tree == nil {
		return s
	}
	s.Tree = s.Tree.Clone()
	s.Tree.ApplyGroupStates(states)
	return s.reflow()
}

// SortBy picks the sort column. Siblings are sorted inside their parent.
func (s State) SortBy(column string) State {
	s.Sort = s.Sort.By(column)
	s.Query.SortBy = s.Sort.Column
	s.Query.SortOrder = string(s.Sort.Direction)
	if s.Tree == nil {
		return s
	}
	s.Tree = s.Tree.Clone()
	s.Tree.SortSiblings(s.Sort.Column, grouptree.Direction(s.Sort.Direction))
	return s.reflow()
}

// ToggleColumn shows or hides a column.
func (s State) ToggleColumn(column string) State {
	s.Columns = s.Columns.Toggle(column)
	return s
}

// ToggleSelect flips selection of the row under the cursor.
func (s State) ToggleSelect() State {
	row, ok := s.CursorRow()
	if !ok {
		return s
	}
	s.Selection = s.Selection.Toggle(row.Key)
	return s
}

// SelectAllVisible selects every row in the visible list.
func (s State) SelectAllVisible() State {
	s.Selection = s.Selection.SelectAll(grouptree.Keys(s.Visible))
	return s
}

// ClearSelection empties the selection.
func (s State) ClearSelection() State {
	s.Selection = s.Selection.Clear()
	return s
}

// SetViewport records the table height in lines.
func (s State) SetViewport(lines int) State {
	if lines < 0 {
		lines = 0
	}
	s.Viewport = lines
	return s.clamp()
}

// MoveCursor moves the cursor by delta rows and scrolls to keep it visible.
func (s State) MoveCursor(delta int) State {
	if len(s.Visible) == 0 {
		s.Cursor = 0
		return s
	}
	s.Cursor += delta
	if s.Cursor < 0 {
		s.Cursor = 0
	}
	if s.Cursor >= len(s.Visible) {
		s.Cursor = len(s.Visible) - 1
	}
	s.ScrollOffset = window.EnsureVisible(s.ScrollOffset, s.Viewport, s.RowHeight, s.Cursor)
	return s.clamp()
}

// Scroll moves the viewport by delta lines without moving the cursor.
func (s State) Scroll(delta int) State {
	s.ScrollOffset += delta
	return s.clamp()
}

// Window returns the row range to materialise.
func (s State) Window() window.Range {
	return window.Compute(s.ScrollOffset, s.Viewport, s.RowHeight, s.Buffer, len(s.Visible))
}

// WindowRows returns the materialised rows and the index of the first one.
func (s State) WindowRows() ([]grouptree.VisibleRow, int) {
	w := s.Window()
	if w.Len() == 0 {
		return nil, 0
	}
	return s.Visible[w.Start : w.End+1], w.Start
}

// CursorRow returns the row under the cursor.
func (s State) CursorRow() (grouptree.VisibleRow, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Visible) {
		return grouptree.VisibleRow{}, false
	}
	return s.Visible[s.Cursor], true
}

// reflow re-flattens the tree and clamps scroll and cursor.
func (s State) reflow() State {
	s.Visible = s.Tree.Flatten()
	if s.Cursor >= len(s.Visible) {
		s.Cursor = len(s.Visible) - 1
	}
	if s.Cursor < 0 {
		s.Cursor = 0
	}
	return s.clamp()
}

func (s State) clamp() State {
	s.ScrollOffset = window.ClampOffset(s.ScrollOffset, s.Viewport, s.RowHeight, len(s.Visible))
	return s
}

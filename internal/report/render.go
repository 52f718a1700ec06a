package report

import (
	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/selection"
)

// RenderConfig is the configuration a table renderer accepts. GroupStates
// maps node keys to their expansion and is kept in sync in both directions:
// it is applied when a config is loaded and re-published on every toggle.
type RenderConfig struct {
	Rows           []grouptree.FlatRow
	Columns        []string
	RowHeight      int
	Buffer         int
	SelectedRows   []string
	GroupStates    map[string]bool
	CellFormatting format.Rules
}

// RenderConfig exports the renderer-facing view of s.
func (s State) RenderConfig() RenderConfig {
	return RenderConfig{
		Rows:           s.Rows,
		Columns:        s.Columns.Visible(),
		RowHeight:      s.RowHeight,
		Buffer:         s.Buffer,
		SelectedRows:   s.Selection.IDs(),
		GroupStates:    s.Tree.GroupStates(),
		CellFormatting: s.Rules,
	}
}

// FromRenderConfig builds a state from an externally supplied configuration.
// allColumns is the canonical column order the visible columns are filtered
// against. A malformed row set is returned as an error.
func FromRenderConfig(cfg RenderConfig, allColumns []string) (State, error) {
	tree, err := grouptree.Build(cfg.Rows)
	if err != nil {
		return State{}, err
	}
	tree.ApplyGroupStates(cfg.GroupStates)

	s := State{
		Rows:      cfg.Rows,
		Tree:      tree,
		Selection: selection.NewSet(cfg.SelectedRows...),
		Columns:   selection.NewColumns(allColumns, cfg.Columns),
		Rules:     cfg.CellFormatting,
		RowHeight: cfg.RowHeight,
		Buffer:    cfg.Buffer,
	}
	if s.RowHeight <= 0 {
		s.RowHeight = 1
	}
	return s.reflow(), nil
}

// GroupStatesObserver publishes the expansion map to fn whenever it changes.
func GroupStatesObserver(fn func(map[string]bool)) Observer {
	var last map[string]bool
	return ObserverFunc(func(s State) {
		states := s.Tree.GroupStates()
		if equalStates(last, states) {
			return
		}
		last = states
		fn(states)
	})
}

func equalStates(a, b map[string]bool) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// Package grouptree builds the collapsible group hierarchy from a flat-groups
// response and flattens it back into the visible row list used for windowing.
//
// Nodes live in an arena addressed by index, with a parent to children
// adjacency list and a key lookup map. A tree is rebuilt wholesale for every
// response; only expansion flags change afterwards.
package grouptree

import (
	"errors"
	"fmt"
)

// ErrMalformedTree is the sentinel wrapped by every *TreeError.
var ErrMalformedTree = errors.New("malformed group tree")

// ErrUnknownNode is returned when a node key is not present in the tree.
var ErrUnknownNode = errors.New("unknown node")

// TreeError describes why a response could not be turned into a tree.
type TreeError struct {
	Row    int // index into the response array
	ID     string
	Reason string
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("malformed group tree at row %d (id %q): %s", e.Row, e.ID, e.Reason)
}

func (e *TreeError) Unwrap() error { return ErrMalformedTree }

type node struct {
	row      FlatRow
	key      string
	parent   int // -1 for roots
	children []int
	expanded bool
}

// Tree is the in-memory group hierarchy for one response.
type Tree struct {
	nodes []node
	roots []int
	byKey map[string]int
}

// Build turns an ordered flat response into a tree in a single pass.
//
// It keeps a stack of open ancestors indexed by level. A row at the current
// depth attaches as a child of the ancestor one level up, a shallower row pops
// the stack first, and a row more than one level deeper than the stack fails.
// Every level-L row must carry an L-long parentPath naming the open ancestors,
// and its direct ancestor must be a group root. Any violation fails the whole
// build; no partial tree is returned.
func Build(rows []FlatRow) (*Tree, error) {
	t := &Tree{
		nodes: make([]node, 0, len(rows)),
		byKey: make(map[string]int, len(rows)),
	}

	var open []int
	for i, r := range rows {
		lvl := r.GroupLevel
		if lvl < 0 {
			return nil, &TreeError{Row: i, ID: r.ID, Reason: fmt.Sprintf("negative group level %d", lvl)}
		}
		if r.ID == "" {
			return nil, &TreeError{Row: i, Reason: "missing id"}
		}
		if lvl > len(open) {
			return nil, &TreeError{Row: i, ID: r.ID, Reason: fmt.Sprintf("level %d skips from depth %d", lvl, len(open))}
		}
		open = open[:lvl]

		parent := -1
		if lvl > 0 {
			parent = open[lvl-1]
			if !t.nodes[parent].row.IsGroupRoot {
				return nil, &TreeError{Row: i, ID: r.ID, Reason: fmt.Sprintf("parent %q is not a group root", t.nodes[parent].row.ID)}
			}
			if len(r.ParentPath) != lvl {
				return nil, &TreeError{Row: i, ID: r.ID, Reason: fmt.Sprintf("parentPath has %d entries, want %d", len(r.ParentPath), lvl)}
			}
			for j, ancestorID := range r.ParentPath {
				if got := t.nodes[open[j]].row.ID; got != ancestorID {
					return nil, &TreeError{Row: i, ID: r.ID, Reason: fmt.Sprintf("parentPath[%d] = %q, open ancestor is %q", j, ancestorID, got)}
				}
			}
		} else if len(r.ParentPath) != 0 {
			return nil, &TreeError{Row: i, ID: r.ID, Reason: "level 0 row has a parentPath"}
		}

		key := r.Key()
		if _, dup := t.byKey[key]; dup {
			return nil, &TreeError{Row: i, ID: r.ID, Reason: "duplicate id among siblings"}
		}

		idx := len(t.nodes)
		t.nodes = append(t.nodes, node{row: r, key: key, parent: parent})
		t.byKey[key] = idx
		if parent < 0 {
			t.roots = append(t.roots, idx)
		} else {
			t.nodes[parent].children = append(t.nodes[parent].children, idx)
		}
		open = append(open, idx)
	}

	return t, nil
}

// Len returns the total node count.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Roots returns the keys of the level-0 nodes in order.
func (t *Tree) Roots() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, len(t.roots))
	for i, idx := range t.roots {
		keys[i] = t.nodes[idx].key
	}
	return keys
}

// Row returns the row stored under key.
func (t *Tree) Row(key string) (FlatRow, bool) {
	if t == nil {
		return FlatRow{}, false
	}
	idx, ok := t.byKey[key]
	if !ok {
		return FlatRow{}, false
	}
	return t.nodes[idx].row, true
}

// Children returns the ordered child keys of key.
func (t *Tree) Children(key string) []string {
	if t == nil {
		return nil
	}
	idx, ok := t.byKey[key]
	if !ok {
		return nil
	}
	kids := t.nodes[idx].children
	keys := make([]string, len(kids))
	for i, c := range kids {
		keys[i] = t.nodes[c].key
	}
	return keys
}

// Clone copies the tree so expansion and sibling order can change without
// affecting the original. Row data is shared and must not be mutated.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{
		nodes: make([]node, len(t.nodes)),
		roots: append([]int(nil), t.roots...),
		byKey: t.byKey,
	}
	copy(c.nodes, t.nodes)
	for i := range c.nodes {
		if c.nodes[i].children != nil {
			c.nodes[i].children = append([]int(nil), c.nodes[i].children...)
		}
	}
	return c
}

package grouptree

// VisibleRow is one entry of the flattened, expansion-aware row list.
type VisibleRow struct {
	Row         FlatRow
	Key         string
	Depth       int
	HasChildren bool
	Expanded    bool
}

// Flatten walks the forest depth first and emits a group root followed by its
// children only while it is expanded. It visits each node at most once.
func (t *Tree) Flatten() []VisibleRow {
	if t == nil {
		return nil
	}
	out := make([]VisibleRow, 0, len(t.roots))

	// Explicit stack; children are pushed in reverse to keep sibling order.
	stack := make([]int, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[idx]

		out = append(out, VisibleRow{
			Row:         n.row,
			Key:         n.key,
			Depth:       n.row.GroupLevel,
			HasChildren: len(n.children) > 0,
			Expanded:    n.expanded,
		})

		if n.expanded {
			for i := len(n.children) - 1; i >= 0; i-- {
				stack = append(stack, n.children[i])
			}
		}
	}
	return out
}

// Rows returns the flat rows of a visible list.
func Rows(visible []VisibleRow) []FlatRow {
	out := make([]FlatRow, len(visible))
	for i, v := range visible {
		out[i] = v.Row
	}
	return out
}

// Keys returns the node keys of a visible list in order.
func Keys(visible []VisibleRow) []string {
	out := make([]string, len(visible))
	for i, v := range visible {
		out[i] = v.Key
	}
	return out
}

// IndexOf returns the position of key in visible, or -1.
func IndexOf(visible []VisibleRow, key string) int {
	for i, v := range visible {
		if v.Key == key {
			return i
		}
	}
	return -1
}

package grouptree

import "fmt"

// Expand opens the group root stored under key. Expanding a leaf is a no-op.
func (t *Tree) Expand(key string) error {
	return t.setExpanded(key, true)
}

// Collapse closes the group root stored under key.
func (t *Tree) Collapse(key string) error {
	return t.setExpanded(key, false)
}

// Toggle flips the expansion of key and returns the new state.
func (t *Tree) Toggle(key string) (bool, error) {
	idx, err := t.lookup(key)
	if err != nil {
		return false, err
	}
	n := &t.nodes[idx]
	if !n.row.IsGroupRoot {
		return false, nil
	}
	n.expanded = !n.expanded
	return n.expanded, nil
}

// Expanded reports whether key is an expanded group root.
func (t *Tree) Expanded(key string) bool {
	idx, err := t.lookup(key)
	if err != nil {
		return false
	}
	return t.nodes[idx].expanded
}

func (t *Tree) setExpanded(key string, v bool) error {
	idx, err := t.lookup(key)
	if err != nil {
		return err
	}
	if t.nodes[idx].row.IsGroupRoot {
		t.nodes[idx].expanded = v
	}
	return nil
}

func (t *Tree) lookup(key string) (int, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, key)
	}
	idx, ok := t.byKey[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, key)
	}
	return idx, nil
}

// ReapplyExpansion marks every group root whose key is in keys as expanded.
// Keys missing from this tree are ignored.
func (t *Tree) ReapplyExpansion(keys map[string]bool) {
	if t == nil {
		return
	}
	for k, open := range keys {
		if !open {
			continue
		}
		if idx, ok := t.byKey[k]; ok && t.nodes[idx].row.IsGroupRoot {
			t.nodes[idx].expanded = true
		}
	}
}

// ExpandedIDs returns the set of expanded node keys, suitable for
// ReapplyExpansion on the next rebuild.
func (t *Tree) ExpandedIDs() map[string]bool {
	out := make(map[string]bool)
	if t == nil {
		return out
	}
	for _, n := range t.nodes {
		if n.expanded {
			out[n.key] = true
		}
	}
	return out
}

// ExpandAll opens every group root.
func (t *Tree) ExpandAll() {
	if t == nil {
		return
	}
	for i := range t.nodes {
		if t.nodes[i].row.IsGroupRoot {
			t.nodes[i].expanded = true
		}
	}
}

// CollapseAll closes every group root.
func (t *Tree) CollapseAll() {
	if t == nil {
		return
	}
	for i := range t.nodes {
		t.nodes[i].expanded = false
	}
}

// GroupStates maps every group root key to its expansion flag.
func (t *Tree) GroupStates() map[string]bool {
	out := make(map[string]bool)
	if t == nil {
		return out
	}
	for _, n := range t.nodes {
		if n.row.IsGroupRoot {
			out[n.key] = n.expanded
		}
	}
	return out
}

// ApplyGroupStates sets expansion from an externally held map. Unlike
// ReapplyExpansion it also collapses nodes mapped to false.
func (t *Tree) ApplyGroupStates(states map[string]bool) {
	if t == nil {
		return
	}
	for k, v := range states {
		if idx, ok := t.byKey[k]; ok && t.nodes[idx].row.IsGroupRoot {
			t.nodes[idx].expanded = v
		}
	}
}

// GroupKeys returns the keys of all group roots in input order.
func (t *Tree) GroupKeys() []string {
	if t == nil {
		return nil
	}
	var keys []string
	for _, n := range t.nodes {
		if n.row.IsGroupRoot {
			keys = append(keys, n.key)
		}
	}
	return keys
}

// DescendantCount returns how many rows below key are currently visible,
// which is the number of rows a collapse of key would remove.
func (t *Tree) DescendantCount(key string) (int, error) {
	idx, err := t.lookup(key)
	if err != nil {
		return 0, err
	}
	if !t.nodes[idx].expanded {
		return 0, nil
	}
	return t.visibleBelow(idx), nil
}

func (t *Tree) visibleBelow(idx int) int {
	count := 0
	for _, c := range t.nodes[idx].children {
		count++
		if t.nodes[c].expanded {
			count += t.visibleBelow(c)
		}
	}
	return count
}

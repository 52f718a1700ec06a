package grouptree

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortSiblings reorders the children of every parent, and the roots, by the
// value of column. Groups are never merged: a child stays under its parent.
// Nil values sort last in either direction and ties keep input order.
func (t *Tree) SortSiblings(column string, dir Direction) {
	if t == nil || column == "" {
		return
	}
	less := func(a, b int) bool {
		va := t.nodes[a].row.Value(column)
		vb := t.nodes[b].row.Value(column)
		if va == nil || vb == nil {
			return va != nil && vb == nil
		}
		c := compareValues(va, vb)
		if dir == Desc {
			return c > 0
		}
		return c < 0
	}

	sortIdx := func(s []int) {
		sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
	}
	sortIdx(t.roots)
	for i := range t.nodes {
		if len(t.nodes[i].children) > 1 {
			sortIdx(t.nodes[i].children)
		}
	}
}

// compareValues orders two non-nil cell values. Numbers compare numerically,
// everything else by its string form.
func compareValues(a, b any) int {
	fa, aok := number(a)
	fb, bok := number(b)
	switch {
	case aok && bok:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(stringOf(a), stringOf(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	}
	b, _ := json.Marshal(v)
	return string(b)
}

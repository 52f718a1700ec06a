package grouptree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Reserved metadata keys carried by engine rows.
const (
	FieldID           = "id"
	FieldGroupLevel   = "groupLevel"
	FieldParentPath   = "parentPath"
	FieldIsGroupRoot  = "isGroupRoot"
	FieldGroupByField = "groupByField"
)

// KeySeparator joins ancestor ids into a node key. Occurrences inside an id
// are escaped with a backslash so distinct paths never share a key.
const KeySeparator = "/"

var keyEscaper = strings.NewReplacer(`\`, `\\`, KeySeparator, `\`+KeySeparator)

// FlatRow is one row of a flat-groups response: the value fields plus the
// reserved group metadata.
type FlatRow struct {
	ID           string
	GroupLevel   int
	ParentPath   []string
	IsGroupRoot  bool
	GroupByField string

	// Fields holds every non-reserved field. Values are string, json.Number,
	// float64, bool or nil.
	Fields map[string]any
}

// Key identifies the row across the whole tree. Ids are only unique among
// siblings, so the key is the ancestor path plus the row id.
func (r FlatRow) Key() string {
	return NodeKey(r.ParentPath, r.ID)
}

// NodeKey joins a parent path and an id into a node key.
func NodeKey(parentPath []string, id string) string {
	var b strings.Builder
	for _, p := range parentPath {
		keyEscaper.WriteString(&b, p)
		b.WriteString(KeySeparator)
	}
	keyEscaper.WriteString(&b, id)
	return b.String()
}

// Value returns the named field. The reserved id and groupByField are also
// addressable so they can be shown as columns.
func (r FlatRow) Value(field string) any {
	switch field {
	case FieldID:
		return r.ID
	case FieldGroupByField:
		if r.GroupByField == "" {
			return nil
		}
		return r.GroupByField
	}
	return r.Fields[field]
}

// Label is the text shown in the tree column: the value of the grouped field
// for group roots, falling back to the id.
func (r FlatRow) Label() string {
	if r.GroupByField != "" {
		if v, ok := r.Fields[r.GroupByField]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return r.ID
}

// UnmarshalJSON decodes an engine row object, splitting reserved metadata from
// value fields. Numbers are kept as json.Number.
func (r *FlatRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	row, err := RowFromMap(raw)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

// MarshalJSON re-emits the row in the engine wire shape.
func (r FlatRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldGroupLevel] = r.GroupLevel
	out[FieldIsGroupRoot] = r.IsGroupRoot
	if r.ParentPath != nil {
		out[FieldParentPath] = r.ParentPath
	} else {
		out[FieldParentPath] = nil
	}
	if r.GroupByField != "" {
		out[FieldGroupByField] = r.GroupByField
	} else {
		out[FieldGroupByField] = nil
	}
	return json.Marshal(out)
}

// RowFromMap extracts metadata from a decoded row object. Rows without group
// metadata become level-0 leaves.
func RowFromMap(raw map[string]any) (FlatRow, error) {
	row := FlatRow{Fields: make(map[string]any, len(raw))}

	for k, v := range raw {
		switch k {
		case FieldID:
			id, err := scalarString(v)
			if err != nil {
				return FlatRow{}, fmt.Errorf("field %s: %w", k, err)
			}
			row.ID = id
		case FieldGroupLevel:
			lvl, err := toInt(v)
			if err != nil {
				return FlatRow{}, fmt.Errorf("field %s: %w", k, err)
			}
			row.GroupLevel = lvl
		case FieldParentPath:
			path, err := toPath(v)
			if err != nil {
				return FlatRow{}, fmt.Errorf("field %s: %w", k, err)
			}
			row.ParentPath = path
		case FieldIsGroupRoot:
			b, ok := v.(bool)
			if !ok && v != nil {
				return FlatRow{}, fmt.Errorf("field %s: want bool, got %T", k, v)
			}
			row.IsGroupRoot = b
		case FieldGroupByField:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return FlatRow{}, fmt.Errorf("field %s: want string, got %T", k, v)
			}
			row.GroupByField = s
		default:
			row.Fields[k] = v
		}
	}

	return row, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return fmt.Sprint(x), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("want string or number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("non-integer %v", x)
		}
		return int(x), nil
	case int:
		return x, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

func toPath(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("want array, got %T", v)
	}
	path := make([]string, 0, len(items))
	for _, item := range items {
		s, err := scalarString(item)
		if err != nil {
			return nil, err
		}
		path = append(path, s)
	}
	return path, nil
}

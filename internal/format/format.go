// Package format evaluates per-column cell formatting rules at render time.
//
// A rule never fails the row it is applied to: comparison or timestamp
// problems are reported in Result.Err and the cell falls back to the rule's
// default style and the raw value.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	// ErrNotNumeric is reported when an ordering operator meets a value that
	// is not a number.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrBadTimestamp is reported when a date rule cannot parse its value.
	ErrBadTimestamp = errors.New("value is not a timestamp")
	// ErrUnknownOperator is reported for operators outside ==, !=, <, >, <=, >=.
	ErrUnknownOperator = errors.New("unknown operator")
)

// RuleType selects how a rule treats the cell value.
type RuleType string

const (
	TypeStyle RuleType = "style"
	TypeDate  RuleType = "date"
)

// Condition is one typed comparison. The first matching condition supplies
// the style.
type Condition struct {
	Operator string `toml:"operator"`
	Value    any    `toml:"value"`
	Style    string `toml:"style"`
}

// Rule is the formatting configuration for one column.
type Rule struct {
	Type         RuleType    `toml:"type"`
	Conditions   []Condition `toml:"conditions"`
	DefaultStyle string      `toml:"default_style"`
	Prefix       string      `toml:"prefix"`
	Suffix       string      `toml:"suffix"`

	// Thousands inserts separators into numeric values.
	Thousands bool `toml:"thousands"`

	// Date rules only.
	Granularity string `toml:"granularity"`
	Locale      string `toml:"locale"`
	ShowAsSpan  bool   `toml:"show_as_span"`
}

// Rules maps a column name to its rule.
type Rules map[string]Rule

// Result is a formatted cell.
type Result struct {
	Text  string
	Style string
	Err   error
}

// Apply formats value under rule. now anchors relative date spans.
func Apply(value any, rule Rule, now time.Time) Result {
	var res Result
	switch rule.Type {
	case TypeDate:
		res = applyDate(value, rule, now)
	default:
		res = applyStyle(value, rule)
	}
	res.Text = rule.Prefix + res.Text + rule.Suffix
	return res
}

// Cell formats value for column, using the raw text when the column has no
// rule.
func (r Rules) Cell(column string, value any, now time.Time) Result {
	rule, ok := r[column]
	if !ok {
		return Result{Text: Text(value)}
	}
	return Apply(value, rule, now)
}

func applyStyle(value any, rule Rule) Result {
	res := Result{Text: Text(value), Style: rule.DefaultStyle}
	if rule.Thousands {
		if f, ok := Number(value); ok {
			res.Text = thousands(f)
		}
	}

	for i, c := range rule.Conditions {
		ok, err := Compare(value, c.Operator, c.Value)
		if err != nil {
			res.Err = fmt.Errorf("condition %d (%s %v): %w", i, c.Operator, c.Value, err)
			res.Style = rule.DefaultStyle
			return res
		}
		if ok {
			res.Style = c.Style
			return res
		}
	}
	return res
}

// Compare evaluates "value op operand". Equality compares numerically when
// both sides are numbers and as text otherwise; ordering needs numbers.
func Compare(value any, op string, operand any) (bool, error) {
	a, aok := Number(value)
	b, bok := Number(operand)

	switch op {
	case "==", "!=":
		var eq bool
		if aok && bok {
			eq = a == b
		} else {
			eq = value != nil && Text(value) == Text(operand)
			if value == nil && operand == nil {
				eq = true
			}
		}
		return eq == (op == "=="), nil
	case "<", ">", "<=", ">=":
		if !aok {
			return false, fmt.Errorf("%w: %v", ErrNotNumeric, value)
		}
		if !bok {
			return false, fmt.Errorf("%w: operand %v", ErrNotNumeric, operand)
		}
		switch op {
		case "<":
			return a < b, nil
		case ">":
			return a > b, nil
		case "<=":
			return a <= b, nil
		default:
			return a >= b, nil
		}
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

// Number extracts a float from the numeric representations found in decoded
// rows and TOML config. Strings are not coerced.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// Text renders a cell value without any rule.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func thousands(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return humanize.Comma(int64(f))
	}
	return humanize.CommafWithDigits(f, 2)
}

// Style names understood by the renderer.
const (
	StyleGood = "good"
	StyleWarn = "warn"
	StyleBad  = "bad"
	StyleDim  = "dim"
	StyleBold = "bold"
)

// KnownStyle reports whether name is a built-in style or a colour the
// renderer accepts (#rrggbb or an ANSI index).
func KnownStyle(name string) bool {
	switch name {
	case "", StyleGood, StyleWarn, StyleBad, StyleDim, StyleBold:
		return true
	}
	if strings.HasPrefix(name, "#") && (len(name) == 4 || len(name) == 7) {
		return true
	}
	n, err := strconv.Atoi(name)
	return err == nil && n >= 0 && n <= 255
}

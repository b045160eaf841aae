// Package normalize flattens Notion's tagged property values into a closed
// set of comparable Go values. The normalized set is exactly:
//
//	string, float64, bool, nil, []string
//
// Every comparison downstream (the differ's field comparison) operates on
// this closed set via Equal, which is structural and type-sensitive — no
// serialize-then-compare shortcuts.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a normalized property value: string, float64, bool, nil or
// []string. The alias keeps signatures readable without introducing a
// wrapper type around what is fundamentally plain data.
type Value = any

// Equal reports whether two normalized values are equal. Values of
// different dynamic types are never equal (so float64(0) != false != "").
// Lists compare element-wise and order-sensitively.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		// Outside the closed set; only occurs on foreign data that Canon
		// was not applied to. Fail closed: report as changed.
		return false
	}
}

// Canon coerces a value decoded from JSON back into the closed normalized
// set. encoding/json yields []any for lists and float64 for all numbers;
// anything that cannot be coerced degrades to nil rather than surviving as
// an unknown type.
func Canon(v any) Value {
	switch tv := v.(type) {
	case nil, string, float64, bool:
		return tv
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, e := range tv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	default:
		return nil
	}
}

// Display renders a normalized value as a plain display string. Lists join
// with ", "; nil renders empty. Used for rollup-array flattening and by the
// report renderer; never fed back into comparisons.
func Display(v Value) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return trimFloat(tv)
	case bool:
		if tv {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(tv, ", ")
	default:
		return fmt.Sprintf("%v", tv)
	}
}

// trimFloat formats a number without a trailing ".0" for whole values.
func trimFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// CanonFields applies Canon to every value of a decoded field map.
// A nil map canonicalizes to an empty one, never nil, so that loaded
// snapshots always compare cleanly against fresh ones.
func CanonFields(fields map[string]any) map[string]Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = Canon(v)
	}
	return out
}

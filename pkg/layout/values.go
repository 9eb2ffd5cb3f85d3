// ABOUTME: Go value forms for optional and composite kinds
// ABOUTME: Conversion helpers shared by handlers

package layout

import (
	"math"
)

// Option holds the value of an Optional kind. The zero Option is unset.
type Option struct {
	Value any
	Valid bool
}

// Some returns a set Option.
func Some(v any) Option { return Option{Value: v, Valid: true} }

// None returns an unset Option.
func None() Option { return Option{} }

// Record holds the field values of an Object kind by field name. A missing
// field is unset and encodes as the zero-equivalent of its type.
type Record map[string]any

// Composite is implemented by Go types that describe their own fields. Object
// handlers accept a Composite wherever a Record is expected.
type Composite interface {
	LayoutRecord() Record
}

func toInt(v any, lo, hi int64) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case nil:
		return 0, true
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	default:
		return 0, false
	}
	return n, n >= lo && n <= hi
}

func toUint(v any, hi uint64) (uint64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case uint:
		return uint64(x), uint64(x) <= hi
	case uint8:
		return uint64(x), uint64(x) <= hi
	case uint16:
		return uint64(x), uint64(x) <= hi
	case uint32:
		return uint64(x), uint64(x) <= hi
	case uint64:
		return x, x <= hi
	}
	n, ok := toInt(v, 0, math.MaxInt64)
	if !ok {
		return 0, false
	}
	return uint64(n), uint64(n) <= hi
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

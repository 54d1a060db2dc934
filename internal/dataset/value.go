package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"geoetl/pkg/records"
)

// IsNull reports whether v counts as a missing value: nil, an empty or
// whitespace-only string, or NaN.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return math.IsNaN(t)
	}
	return false
}

// HasNull reports whether any of r's values for cols is null. With no cols,
// every column of the record is checked.
func HasNull(r records.Record, cols []string) bool {
	if len(cols) == 0 {
		for _, v := range r {
			if IsNull(v) {
				return true
			}
		}
		return false
	}
	for _, c := range cols {
		if IsNull(r[c]) {
			return true
		}
	}
	return false
}

// Key builds a comparable key from the values of cols. Nulls map to "\x00"
// and values are separated by "\x1f", so ("a", "") and ("a\x1f", nil) do not
// collide. Values are compared by text, as in Equal: "5" and int64(5) give
// the same key. Use TypedKey when the value types must match too.
func Key(r records.Record, cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(Text(r[c]))
	}
	return b.String()
}

// TypedKey is Key with each value prefixed by its kind, so "5" and int64(5)
// differ. Integers and floats share a kind: int64(5) and 5.0 are the same
// value.
func TypedKey(r records.Record, cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		v := r[c]
		b.WriteByte(kindMark(v))
		b.WriteString(Text(v))
	}
	return b.String()
}

func kindMark(v any) byte {
	switch v.(type) {
	case nil:
		return '0'
	case string:
		return 's'
	case int, int32, int64, float32, float64:
		return 'n'
	case bool:
		return 'b'
	case time.Time:
		return 't'
	}
	return 'o'
}

// Text renders v the way keys and comparisons see it.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns v as a float64 when v is numeric or bool. Strings are not
// parsed.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Compare orders two cell values: nulls last, numbers numerically, times
// chronologically, everything else by its text form.
func Compare(a, b any) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	if af, ok := Float(a); ok {
		if bf, ok := Float(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(Text(a), Text(b))
}

// Equal reports whether two cell values are the same for matching purposes.
// A configured YAML scalar such as 5 or "5" equals a cell holding int64(5)
// or "5".
func Equal(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	return Text(a) == Text(b)
}

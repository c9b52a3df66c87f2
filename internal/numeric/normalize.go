// Package numeric coerces untrusted numeric payload values into bounded
// integers. Every conversion degrades to a caller-supplied fallback instead
// of failing; the inbound payload comes from an external platform and partial
// malformation must not crash the pricing pipeline.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce converts v to an int64, truncating toward zero. Non-finite or
// unrecognisable input yields fallback.
func Coerce(v any, fallback int64) int64 {
	n, ok := CoerceStrict(v)
	if !ok {
		return fallback
	}
	return n
}

// CoerceStrict converts v to an int64, truncating toward zero, and reports
// whether the input was a finite number. Callers that must fail closed on
// malformed input branch on the second return.
func CoerceStrict(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return truncateFloat(n)
	case float32:
		return truncateFloat(float64(n))
	case json.Number:
		return coerceString(n.String())
	case string:
		return coerceString(n)
	default:
		return 0, false
	}
}

// Clamp bounds v into [min, max].
func Clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func truncateFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(math.Trunc(f)), true
}

func coerceString(s string) (int64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return truncateFloat(f)
}

package numeric

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeProductID derives an opaque product identifier from either a raw
// numeric id or a URN-like string ("gid://platform/ProductVariant/12345"),
// keeping the trailing numeric segment. Unusable input yields "".
func NormalizeProductID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return trailingNumericSegment(id)
	case json.Number:
		return trailingNumericSegment(id.String())
	case float64:
		if id != float64(int64(id)) {
			return ""
		}
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

func trailingNumericSegment(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if _, err := strconv.ParseUint(trimmed, 10, 64); err != nil {
		return ""
	}
	return trimmed
}

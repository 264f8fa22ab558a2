package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// lookup resolves a dotted path ("prevDay.c") inside a decoded JSON
// object. Missing segments return ok=false rather than failing.
func lookup(fields map[string]any, path string) (any, bool) {
	cur := any(fields)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// getFloat returns a pointer so absent stays distinguishable from zero.
func getFloat(fields map[string]any, path string) *float64 {
	v, ok := lookup(fields, path)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func getInt(fields map[string]any, path string) *int64 {
	f := getFloat(fields, path)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

func getString(fields map[string]any, path string) string {
	v, ok := lookup(fields, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// getTime reads a timestamp in the unit the source reports it in and
// converts to UTC. Units: "s" epoch seconds, "ms" epoch milliseconds,
// "date" an ISO calendar date string.
func getTime(fields map[string]any, path, unit string) time.Time {
	v, ok := lookup(fields, path)
	if !ok {
		return time.Time{}
	}
	switch unit {
	case "date":
		s, _ := v.(string)
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	case "ms":
		f, ok := toFloat(v)
		if !ok {
			return time.Time{}
		}
		return time.UnixMilli(int64(f)).UTC()
	default: // "s"
		f, ok := toFloat(v)
		if !ok {
			return time.Time{}
		}
		return time.Unix(int64(f), 0).UTC()
	}
}

func round(v float64, digits int) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', digits, 64), 64)
	if err != nil {
		return v
	}
	return f
}

func roundPtr(v *float64, digits int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, digits)
	return &r
}

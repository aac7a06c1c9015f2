package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/labsync/internal/parse"
)

// Number resolves a numeric field. It accepts a finite non-negative JSON
// number, or a string whose leading number is finite and non-negative, and
// otherwise returns def.
func Number(f parse.Field[parse.Value], def float64) float64 {
	raw, ok := f.Get()
	if !ok {
		return def
	}
	if v, ok := toFloat64(raw); ok && valid(v) {
		return v
	}
	return def
}

// String resolves a text field. Numbers and booleans keep their literal
// text; empty strings, arrays and objects fall back to def.
func String(f parse.Field[parse.Value], def string) string {
	raw, ok := f.Get()
	if !ok {
		return def
	}
	if s, ok := scalarText(raw); ok && s != "" {
		return s
	}
	return def
}

// Date resolves a date field. JSON numbers are Unix milliseconds.
func Date(f parse.Field[parse.Value], now time.Time) time.Time {
	raw, ok := f.Get()
	if !ok {
		return now
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] != '"' {
		var ms float64
		if err := json.Unmarshal(trimmed, &ms); err == nil && valid(ms) {
			return time.UnixMilli(int64(ms)).UTC()
		}
		return now
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return now
	}
	if t, ok := parseDate(strings.TrimSpace(s)); ok {
		return t
	}
	return now
}

// StringList resolves an array field to its non-empty scalar elements.
func StringList(f parse.Field[[]parse.Value]) []string {
	out := []string{}
	items, ok := f.Get()
	if !ok {
		return out
	}
	for _, raw := range items {
		if s, ok := scalarText(raw); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// toFloat64 reads a JSON number, or the leading number of a JSON string
// after dropping currency symbols, thousands separators and spaces.
func toFloat64(raw []byte) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}
	if trimmed[0] != '"' {
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return 0, false
		}
		return n, true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return 0, false
	}
	return parseNumeric(s)
}

var numericNoise = strings.NewReplacer("$", "", ",", "", " ", "", " ", "", "_", "")

func parseNumeric(s string) (float64, bool) {
	cleaned := numericNoise.Replace(strings.TrimSpace(s))
	m := leadingNumber.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func scalarText(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case '{', '[', 'n':
		return "", false
	default:
		// number or boolean literal
		return string(trimmed), true
	}
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

package tabular

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05.999999999"
)

// timeLayouts are tried in order when parsing date-like strings
var timeLayouts = []string{
	DateLayout,
	DateTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"20060102",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ToInt converts v to an integer; integral floats and numeric strings qualify
func ToInt(v any) (int64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, true
	case float64:
		if math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return ToInt(f)
		}
	}
	return 0, false
}

// ToFloat converts v to a float; NaN is not a valid result
func ToFloat(v any) (float64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToBool converts v to a bool
func ToBool(v any) (bool, bool) {
	switch x := Normalize(v).(type) {
	case bool:
		return x, true
	case int64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true, true
		case "false", "f", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

// ToTime parses v as a date or timestamp
func ToTime(v any) (time.Time, bool) {
	switch x := Normalize(v).(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ToString renders v as a string; nil stays nil
func ToString(v any) any {
	v = Normalize(v)
	if v == nil {
		return nil
	}
	return FormatValue(v)
}

// InferValue guesses the type of a text cell. "" is null. Numbers written with
// leading zeros, such as codes, stay text.
func InferValue(s string) any {
	if s == "" {
		return nil
	}
	if v, ok := parseAs(KindInt, s); ok {
		return v
	}
	if v, ok := parseAs(KindFloat, s); ok {
		return v
	}
	return s
}

// inferKinds lists the kinds a text column may narrow to, most specific first
var inferKinds = []Kind{KindInt, KindFloat, KindBool}

// inferColumn converts a column of text cells to the narrowest kind every cell
// parses as. A column that fits none of them stays text.
func inferColumn(values []any) []any {
	for _, v := range values {
		if _, ok := v.(string); !ok && v != nil {
			return values
		}
	}

	for _, kind := range inferKinds {
		if out, ok := convertColumn(values, kind); ok {
			return out
		}
	}
	out := make([]any, len(values))
	for i, v := range values {
		if s, _ := v.(string); s != "" {
			out[i] = s
		}
	}
	return out
}

// convertColumn parses every non-empty cell as kind; ok is false on the first failure
func convertColumn(values []any, kind Kind) ([]any, bool) {
	out := make([]any, len(values))
	seen := false
	for i, v := range values {
		s, _ := v.(string)
		if s == "" {
			continue
		}
		parsed, ok := parseAs(kind, s)
		if !ok {
			return nil, false
		}
		out[i] = parsed
		seen = true
	}
	return out, seen
}

func parseAs(kind Kind, s string) (any, bool) {
	switch kind {
	case KindInt:
		if hasLeadingZero(s) {
			return nil, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	case KindFloat:
		if hasLeadingZero(s) {
			return nil, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return Normalize(f), true
	case KindBool:
		if !isBoolText(s) {
			return nil, false
		}
		return strings.EqualFold(s, "true"), true
	}
	return nil, false
}

// hasLeadingZero reports numbers like "0002" or "-01.5" whose zeros would be lost
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

func isBoolText(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

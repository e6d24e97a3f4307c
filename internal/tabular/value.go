package tabular

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind classifies a cell value
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindTime
)

// String returns the kind name used in persisted metadata
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) Kind {
	switch s {
	case "int":
		return KindInt
	case "float":
		return KindFloat
	case "bool":
		return KindBool
	case "string":
		return KindString
	case "time":
		return KindTime
	default:
		return KindNull
	}
}

// KindOf reports the kind of a normalized value
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	default:
		return KindString
	}
}

// Normalize maps Go values onto the cell value set: nil, int64, float64, bool, string, time.Time.
// NaN becomes nil.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, bool, string, time.Time:
		return x
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
		return float64(x)
	case []byte:
		return string(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case interface{ String() string }:
		return x.String()
	default:
		return formatAny(x)
	}
}

// FormatValue renders a value the way it is written to text formats
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout)
		}
		return x.Format(DateTimeLayout)
	default:
		return formatAny(x)
	}
}

// keyText is the type-agnostic text used for key tuples, so 1, 1.0 and "1" compare equal
func keyText(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return FormatValue(x)
	}
}

func formatAny(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

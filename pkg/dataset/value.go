package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/confluxdata/conflux/pkg/errors"
)

// Kind identifies the scalar type carried by a Value.
type Kind uint8

const (
	// KindNull is the absent value
	KindNull Kind = iota
	// KindString is a UTF-8 string
	KindString
	// KindInt is a 64-bit signed integer
	KindInt
	// KindFloat is a 64-bit float
	KindFloat
	// KindBool is a boolean
	KindBool
	// KindTime is a timestamp
	KindTime
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name to a Kind. Recognized names follow the
// configuration vocabulary: string, int/integer, float/numeric, bool/boolean,
// timestamp/datetime.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "string", "str":
		return KindString, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "numeric", "double":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "timestamp", "datetime", "time":
		return KindTime, nil
	default:
		return KindNull, errors.Newf(errors.ErrorTypeData, "unknown type name %q", name)
	}
}

// Value is an immutable tagged scalar: null, string, int, float, bool or
// timestamp. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Null returns the null value
func Null() Value { return Value{} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float value
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a timestamp value
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// FromAny converts a native Go scalar into a Value. Unsupported types are
// stringified with fmt.
func FromAny(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	case []byte:
		return String(string(x))
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Kind returns the scalar type of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. The second result is false when the value
// is not a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Int64 returns the integer payload
func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInt
}

// Float64 returns the numeric payload, promoting integers
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Boolean returns the boolean payload
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Timestamp returns the time payload
func (v Value) Timestamp() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Any returns the value as a native Go scalar (nil for null)
func (v Value) Any() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// String renders the value for display. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Equal reports value equality. Integers and floats carrying the same
// numeric value compare equal; null equals only null.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNull || other.kind == KindNull {
		return v.kind == other.kind
	}
	if (v.kind == KindInt || v.kind == KindFloat) &&
		(other.kind == KindInt || other.kind == KindFloat) {
		a, _ := v.Float64()
		b, _ := other.Float64()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	case KindTime:
		return v.t.Equal(other.t)
	default:
		return false
	}
}

// Compare orders two values of compatible kinds: -1, 0 or 1. Numeric kinds
// cross-compare; comparing null or incompatible kinds is an error.
func (v Value) Compare(other Value) (int, error) {
	if v.kind == KindNull || other.kind == KindNull {
		return 0, errors.New(errors.ErrorTypeData, "cannot compare null values")
	}
	if a, ok := v.Float64(); ok {
		if b, ok := other.Float64(); ok {
			switch {
			case a < b:
				return -1, nil
			case a > b:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if v.kind != other.kind {
		return 0, errors.Newf(errors.ErrorTypeData, "cannot compare %s with %s", v.kind, other.kind)
	}
	switch v.kind {
	case KindString:
		return strings.Compare(v.s, other.s), nil
	case KindTime:
		switch {
		case v.t.Before(other.t):
			return -1, nil
		case v.t.After(other.t):
			return 1, nil
		default:
			return 0, nil
		}
	case KindBool:
		return 0, errors.New(errors.ErrorTypeData, "booleans are not ordered")
	default:
		return 0, errors.Newf(errors.ErrorTypeData, "cannot compare %s values", v.kind)
	}
}

// timeLayouts are accepted when coercing strings to timestamps
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts the value to the target kind. Null coerces to null for any
// target. Conversions that cannot be represented return an error.
func (v Value) Coerce(target Kind) (Value, error) {
	if v.kind == KindNull || v.kind == target {
		return v, nil
	}
	switch target {
	case KindString:
		return String(v.String()), nil
	case KindInt:
		switch v.kind {
		case KindFloat:
			return Int(int64(v.f)), nil
		case KindBool:
			if v.b {
				return Int(1), nil
			}
			return Int(0), nil
		case KindString:
			i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
			if err != nil {
				return v, errors.Newf(errors.ErrorTypeData, "cannot coerce %q to int", v.s)
			}
			return Int(i), nil
		case KindTime:
			return Int(v.t.Unix()), nil
		}
	case KindFloat:
		switch v.kind {
		case KindInt:
			return Float(float64(v.i)), nil
		case KindBool:
			if v.b {
				return Float(1), nil
			}
			return Float(0), nil
		case KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if err != nil {
				return v, errors.Newf(errors.ErrorTypeData, "cannot coerce %q to float", v.s)
			}
			return Float(f), nil
		}
	case KindBool:
		switch v.kind {
		case KindInt:
			return Bool(v.i != 0), nil
		case KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(v.s))
			if err != nil {
				return v, errors.Newf(errors.ErrorTypeData, "cannot coerce %q to bool", v.s)
			}
			return Bool(b), nil
		}
	case KindTime:
		switch v.kind {
		case KindString:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(v.s)); err == nil {
					return Time(t), nil
				}
			}
			return v, errors.Newf(errors.ErrorTypeData, "cannot coerce %q to timestamp", v.s)
		case KindInt:
			return Time(time.Unix(v.i, 0).UTC()), nil
		}
	}
	return v, errors.Newf(errors.ErrorTypeData, "cannot coerce %s to %s", v.kind, target)
}

package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is the result of a loose numeric cast. Values that could not be
// cast hold NaN and serialize as JSON null.
type Number float64

// Valid reports whether the cast produced a finite number.
func (n Number) Valid() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON writes integers without a fractional part and invalid numbers
// as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

// Truthy reports whether a decoded JSON or parameter value counts as present.
// nil, false, "", zero and NaN are absent; everything else is present.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case Number:
		return x != 0 && !math.IsNaN(float64(x))
	default:
		return true
	}
}

// ToNumber casts a decoded value to a number: nil, false and blank strings
// become 0, true becomes 1, numeric strings are parsed and anything else is
// NaN.
func ToNumber(v any) Number {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return Number(x)
	case float32:
		return Number(x)
	case int:
		return Number(x)
	case int64:
		return Number(x)
	case int32:
		return Number(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Number(math.NaN())
		}
		return Number(f)
	case Number:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number(math.NaN())
		}
		return Number(f)
	case []any:
		switch len(x) {
		case 0:
			return 0
		case 1:
			return ToNumber(x[0])
		}
		return Number(math.NaN())
	default:
		return Number(math.NaN())
	}
}

// Stringify renders a decoded value as text, formatting floats without
// exponent or trailing zeros.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case Number:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

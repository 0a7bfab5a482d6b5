package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies what a Value holds
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

// Value is a loosely typed JSON scalar. Rule values and period lengths arrive
// from editors and from the backend as either strings, numbers or null, and
// are coerced at the edges.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func NullValue() Value            { return Value{} }
func StringValue(s string) Value  { return Value{kind: ValueString, str: s} }
func NumberValue(n float64) Value { return Value{kind: ValueNumber, num: n} }
func BoolValue(b bool) Value      { return Value{kind: ValueBool, b: b} }

// IntValue is a shorthand for integral numbers
func IntValue(n int) Value { return NumberValue(float64(n)) }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == ValueNull }

// IsAbsent reports whether the value is null or an empty string
func (v Value) IsAbsent() bool {
	return v.kind == ValueNull || (v.kind == ValueString && v.str == "")
}

// String renders the value the way a text field shows it; null becomes "".
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return formatNumber(v.num)
	case ValueBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Number converts the value to a float. Null and blank strings are zero,
// strings that do not parse give NaN.
func (v Value) Number() float64 {
	switch v.kind {
	case ValueNumber:
		return v.num
	case ValueBool:
		if v.b {
			return 1
		}
		return 0
	case ValueString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	}
	return 0
}

// Truthy reports whether the numeric value is set (non-zero and not NaN)
func (v Value) Truthy() bool {
	n := v.Number()
	return n != 0 && !math.IsNaN(n)
}

// IsNonNegativeInt reports whether the value is a number kind holding a whole number >= 0
func (v Value) IsNonNegativeInt() bool {
	if v.kind != ValueNumber {
		return false
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return false
	}
	return v.num >= 0 && v.num == math.Trunc(v.num)
}

// Equal compares kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == o.str
	case ValueNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case ValueBool:
		return v.b == o.b
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(formatNumber(v.num)), nil
	case ValueBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NullValue()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("value must be a string, number, boolean or null: %w", err)
		}
		*v = NumberValue(n)
	}
	return nil
}

func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

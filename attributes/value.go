package attributes

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

// Value kinds. KindInvalid is the zero Value and is never stored.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// Value is an attribute value restricted to string, number or boolean.
//
//nolint:govet // Field order keeps the kind tag first for readability
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	b    bool
}

// String returns a string Value. The empty string is a valid value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a dynamically typed input into a Value.
// Only strings, booleans and Go numeric types are accepted; nil, pointers,
// slices, maps, structs and funcs report false.
func ValueOf(v any) (Value, bool) {
	switch x := v.(type) {
	case Value:
		return x, x.Valid()
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case int:
		return Int(int64(x)), true
	case int8:
		return Int(int64(x)), true
	case int16:
		return Int(int64(x)), true
	case int32:
		return Int(int64(x)), true
	case int64:
		return Int(x), true
	case uint:
		return fromUint(uint64(x)), true
	case uint8:
		return Int(int64(x)), true
	case uint16:
		return Int(int64(x)), true
	case uint32:
		return Int(int64(x)), true
	case uint64:
		return fromUint(x), true
	case float32:
		return Float(float64(x)), true
	case float64:
		return Float(x), true
	default:
		return Value{}, false
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether v holds one of the permitted kinds.
func (v Value) Valid() bool { return v.kind != KindInvalid }

// AsString returns the string member and whether v is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the integer member and whether v is an integer.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

// AsFloat returns the float member and whether v is a float.
func (v Value) AsFloat() (float64, bool) { return v.flt, v.kind == KindFloat }

// AsBool returns the boolean member and whether v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the held value as string, int64, float64 or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the held member. Non-finite floats encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.flt) || math.IsInf(v.flt, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

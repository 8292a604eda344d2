package core

import "encoding/json"

// Value is a tagged union for op args, context entries, and metadata — the
// core never interprets these beyond storing and round-tripping them.
// Callers own the meaning of any given key.
type Value struct {
	kind  valueKind
	str   string
	num   float64
	b     bool
	arr   []Value
	m     map[string]Value
}

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindArray
	kindMap
)

func NullValue() Value            { return Value{kind: kindNull} }
func StringValue(s string) Value  { return Value{kind: kindString, str: s} }
func IntValue(i int64) Value      { return Value{kind: kindInt, num: float64(i)} }
func FloatValue(f float64) Value  { return Value{kind: kindFloat, num: f} }
func BoolValue(b bool) Value      { return Value{kind: kindBool, b: b} }
func ArrayValue(v []Value) Value  { return Value{kind: kindArray, arr: v} }
func MapValue(v map[string]Value) Value {
	return Value{kind: kindMap, m: v}
}

func (v Value) IsNull() bool { return v.kind == kindNull }

func (v Value) String() (string, bool) {
	if v.kind != kindString {
		return "", false
	}
	return v.str, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != kindInt {
		return 0, false
	}
	return int64(v.num), true
}

func (v Value) Float() (float64, bool) {
	if v.kind != kindFloat && v.kind != kindInt {
		return 0, false
	}
	return v.num, true
}

func (v Value) Bool() (bool, bool) {
	if v.kind != kindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Array() ([]Value, bool) {
	if v.kind != kindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) Map() (map[string]Value, bool) {
	if v.kind != kindMap {
		return nil, false
	}
	return v.m, true
}

// ValueMap is the opaque key/value container used for op args, the context
// map, and metadata throughout the engine.
type ValueMap map[string]Value

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNull:
		return json.Marshal(nil)
	case kindString:
		return json.Marshal(v.str)
	case kindInt:
		return json.Marshal(int64(v.num))
	case kindFloat:
		return json.Marshal(v.num)
	case kindBool:
		return json.Marshal(v.b)
	case kindArray:
		return json.Marshal(v.arr)
	case kindMap:
		return json.Marshal(v.m)
	default:
		return json.Marshal(nil)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case float64:
		if x == float64(int64(x)) {
			return IntValue(int64(x))
		}
		return FloatValue(x)
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = fromAny(e)
		}
		return ArrayValue(out)
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			out[k] = fromAny(e)
		}
		return MapValue(out)
	default:
		return NullValue()
	}
}

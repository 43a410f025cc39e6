package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ValueKind identifies the concrete kind held by a Value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
	KindTime   ValueKind = "time"
	KindMap    ValueKind = "map"
)

// Value is a tagged union over the property value kinds the graph store
// supports. Process variables are an open key-value bag at the API surface,
// but internally every value carries its kind so mapping to and from driver
// parameters is lossless and statically checkable.
type Value struct {
	kind ValueKind
	str  string
	i    int64
	f    float64
	b    bool
	t    time.Time
	m    Variables
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an int64.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float64.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// TimeValue wraps a timestamp. The value is normalized to UTC.
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// MapValue wraps a nested variables mapping.
func MapValue(m Variables) Value { return Value{kind: KindMap, m: m} }

// Kind returns the kind tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string payload and whether the value holds one.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the int payload and whether the value holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload and whether the value holds one.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the bool payload and whether the value holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsTime returns the time payload and whether the value holds one.
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindTime }

// AsMap returns the nested mapping and whether the value holds one.
func (v Value) AsMap() (Variables, bool) { return v.m, v.kind == KindMap }

// Param returns the driver-native representation of the value, suitable for
// use in a bound parameter map. Timestamps are passed as RFC3339Nano strings
// so compiled queries stay byte-stable across driver versions.
func (v Value) Param() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindMap:
		return v.m.Params()
	default:
		return nil
	}
}

// ValueOf converts a raw driver value into a typed Value.
// Returns an error for kinds the variables bag does not support.
func ValueOf(raw any) (Value, error) {
	switch val := raw.(type) {
	case string:
		// Timestamps round-trip through the driver as RFC3339Nano strings.
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return TimeValue(t), nil
		}
		return StringValue(val), nil
	case int64:
		return IntValue(val), nil
	case int:
		return IntValue(int64(val)), nil
	case float64:
		return FloatValue(val), nil
	case bool:
		return BoolValue(val), nil
	case time.Time:
		return TimeValue(val), nil
	case map[string]any:
		nested, err := VariablesOf(val)
		if err != nil {
			return Value{}, err
		}
		return MapValue(nested), nil
	default:
		return Value{}, fmt.Errorf("unsupported variable value type %T", raw)
	}
}

// valueJSON is the tagged wire form of a Value.
type valueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler using a tagged encoding so the kind
// survives the round trip (a bare JSON number cannot distinguish int from
// float, nor a string from a timestamp).
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindString:
		payload = v.str
	case KindInt:
		payload = v.i
	case KindFloat:
		payload = v.f
	case KindBool:
		payload = v.b
	case KindTime:
		payload = v.t.Format(time.RFC3339Nano)
	case KindMap:
		payload = v.m
	default:
		return nil, fmt.Errorf("cannot marshal value of unknown kind %q", v.kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.kind, Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler for the tagged encoding.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindInt:
		var i int64
		if err := json.Unmarshal(wire.Value, &i); err != nil {
			return err
		}
		*v = IntValue(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(wire.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case KindTime:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		*v = TimeValue(t)
	case KindMap:
		var m Variables
		if err := json.Unmarshal(wire.Value, &m); err != nil {
			return err
		}
		*v = MapValue(m)
	default:
		return fmt.Errorf("unknown value kind %q", wire.Kind)
	}
	return nil
}

// Variables is the typed key-value bag carried by process instances and tasks.
type Variables map[string]Value

// Params converts the bag to a driver-native parameter map.
func (vars Variables) Params() map[string]any {
	params := make(map[string]any, len(vars))
	for key, val := range vars {
		params[key] = val.Param()
	}
	return params
}

// VariablesOf converts a raw driver map into a typed Variables bag.
func VariablesOf(raw map[string]any) (Variables, error) {
	vars := make(Variables, len(raw))
	for key, rawVal := range raw {
		val, err := ValueOf(rawVal)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", key, err)
		}
		vars[key] = val
	}
	return vars, nil
}

// Keys returns the variable names in sorted order.
func (vars Variables) Keys() []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the bag. Nested maps are shared; callers
// that mutate nested values must clone those levels themselves.
func (vars Variables) Clone() Variables {
	if vars == nil {
		return nil
	}
	clone := make(Variables, len(vars))
	for key, val := range vars {
		clone[key] = val
	}
	return clone
}

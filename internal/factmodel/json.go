package factmodel

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON renders a Value the way the JSON fact format expects:
// scalars inline, arrays/objects recursively, null as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	case KindInstant:
		return json.Marshal(v.t.UTC().Format(time.RFC3339Nano))
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.object)
	default:
		return nil, fmt.Errorf("factmodel: unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON infers a Kind from the JSON shape: numbers with no
// fractional part become Integer, otherwise Float; ISO-8601-looking
// strings become Instant, otherwise String.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded JSON value (as produced by encoding/json's
// interface{} decoding) into a Value.
func FromAny(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return Instant(t)
		}
		return String(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		f, _ := x.Float64()
		return Float(f)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case []interface{}:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromAny(e)
		}
		return Array(out)
	case map[string]interface{}:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			out[k] = FromAny(e)
		}
		return Object(out)
	default:
		return Null()
	}
}

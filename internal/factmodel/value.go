// Package factmodel defines the immutable value and fact types that flow
// through the RETE network: the tagged Value union, the Fact record, and
// the field-name interner used by compiled conditions.
package factmodel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindInstant
	KindArray
	KindObject
)

// Ordering is the result of comparing two Values.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
	Incomparable
)

// Value is a tagged union over the scalar and composite types a Fact field
// can hold. It is kept small: scalars live inline, arrays/objects are held
// behind owned slice/map handles.
type Value struct {
	kind   Kind
	i      int64
	f      float64
	s      string
	b      bool
	t      time.Time
	arr    []Value
	object map[string]Value
}

func Null() Value                 { return Value{kind: KindNull} }
func Int(v int64) Value           { return Value{kind: KindInt, i: v} }
func Float(v float64) Value       { return Value{kind: KindFloat, f: v} }
func String(v string) Value       { return Value{kind: KindString, s: v} }
func Bool(v bool) Value           { return Value{kind: KindBool, b: v} }
func Instant(v time.Time) Value   { return Value{kind: KindInstant, t: v} }
func Array(v []Value) Value       { return Value{kind: KindArray, arr: v} }
func Object(v map[string]Value) Value {
	return Value{kind: KindObject, object: v}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInt() (int64, bool)   { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInstant() (time.Time, bool) {
	return v.t, v.kind == KindInstant
}
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) {
	return v.object, v.kind == KindObject
}

// ToNumeric returns the numeric coercion of a Value. Defined only for
// Integer/Float; every other kind yields (0, false) and callers must treat
// that as "no match" rather than an error.
func (v Value) ToNumeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal reports structural equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	case KindInstant:
		return v.t.Equal(other.t)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.object) != len(other.object) {
			return false
		}
		for k, val := range v.object {
			ov, ok := other.object[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare defines a total ordering over Integer/Float (numeric coercion,
// promoting Integer to Float when kinds differ) and lexicographic ordering
// over strings. Every other pairing — including any comparison touching
// bool, instant, array, object or null — is Incomparable, and operators
// built on Compare must treat Incomparable as a non-match, never an error.
func Compare(a, b Value) Ordering {
	if an, aok := a.ToNumeric(); aok {
		if bn, bok := b.ToNumeric(); bok {
			switch {
			case an < bn:
				return Less
			case an > bn:
				return Greater
			default:
				return Equal
			}
		}
		return Incomparable
	}
	if a.kind == KindString && b.kind == KindString {
		switch {
		case a.s < b.s:
			return Less
		case a.s > b.s:
			return Greater
		default:
			return Equal
		}
	}
	return Incomparable
}

// ToKey renders a canonical, stable string suitable for use as an equality
// index key. Object keys are sorted so the rendering is order-independent.
func (v Value) ToKey() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return "i:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "f:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "s:" + v.s
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindInstant:
		return "t:" + v.t.UTC().Format(time.RFC3339Nano)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.ToKey()
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.object))
		for k := range v.object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.object[k].ToKey()
		}
		return "o:{" + strings.Join(parts, ",") + "}"
	default:
		return "?"
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInstant:
		return v.t.UTC().Format(time.RFC3339Nano)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindObject:
		return fmt.Sprintf("%v", v.object)
	default:
		return ""
	}
}

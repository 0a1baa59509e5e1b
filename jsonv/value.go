// Package jsonv implements the JSON document value held by the store.
//
// A Value is a tagged union over the six JSON kinds. Values are immutable
// through this API: constructors copy their inputs and accessors return
// copies, so a Value handed out can never alias another holder's state.
package jsonv

import (
	"fmt"
	"math"
)

// Kind identifies which member of the union a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON document. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *object
}

// object keeps keys in insertion order.
type object struct {
	keys   []string
	fields map[string]Value
}

// Field is one key/value pair of an object, used to build objects in order.
type Field struct {
	Key   string
	Value Value
}

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

func NumberValue(n float64) Value { return Value{kind: Number, n: n} }

func StringValue(s string) Value { return Value{kind: String, s: s} }

// ArrayValue builds an array. The elements are deep copied.
func ArrayValue(elems ...Value) Value {
	arr := make([]Value, len(elems))
	for i, e := range elems {
		arr[i] = e.Clone()
	}
	return Value{kind: Array, arr: arr}
}

// ObjectValue builds an object from fields in order. A repeated key keeps its
// first position and its last value.
func ObjectValue(fields ...Field) Value {
	o := &object{
		keys:   make([]string, 0, len(fields)),
		fields: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		if _, ok := o.fields[f.Key]; !ok {
			o.keys = append(o.keys, f.Key)
		}
		o.fields[f.Key] = f.Value.Clone()
	}
	return Value{kind: Object, obj: o}
}

// F is shorthand for a Field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

func (v Value) Number() (float64, bool) { return v.n, v.kind == Number }

func (v Value) Str() (string, bool) { return v.s, v.kind == String }

// Len is the element count of an array or the field count of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj.keys)
	}
	return 0
}

// Index returns the i-th array element.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i].Clone(), true
}

// Elements returns a copy of the array elements.
func (v Value) Elements() []Value {
	if v.kind != Array {
		return nil
	}
	out := make([]Value, len(v.arr))
	for i, e := range v.arr {
		out[i] = e.Clone()
	}
	return out
}

// Get returns the field of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	f, ok := v.obj.fields[key]
	if !ok {
		return Value{}, false
	}
	return f.Clone(), true
}

// Keys returns the object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	return append([]string(nil), v.obj.keys...)
}

// Fields returns the object fields in insertion order.
func (v Value) Fields() []Field {
	if v.kind != Object {
		return nil
	}
	out := make([]Field, len(v.obj.keys))
	for i, k := range v.obj.keys {
		out[i] = Field{Key: k, Value: v.obj.fields[k].Clone()}
	}
	return out
}

// With returns a copy of the object with key set to f. An existing key keeps
// its position; a new key is appended.
func (v Value) With(key string, f Value) Value {
	if v.kind != Object {
		return v
	}
	fields := v.Fields()
	for i := range fields {
		if fields[i].Key == key {
			fields[i].Value = f
			return ObjectValue(fields...)
		}
	}
	return ObjectValue(append(fields, Field{Key: key, Value: f})...)
}

// Without returns a copy of the object without key.
func (v Value) Without(key string) Value {
	if v.kind != Object {
		return v
	}
	fields := v.Fields()
	out := fields[:0]
	for _, f := range fields {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return ObjectValue(out...)
}

// Merge overlays the top-level fields of patch onto v. Nested objects in
// patch replace the corresponding field wholesale.
func Merge(v, patch Value) (Value, error) {
	if v.kind != Object {
		return Value{}, fmt.Errorf("jsonv: merge target is %s, not object", v.kind)
	}
	if patch.kind != Object {
		return Value{}, fmt.Errorf("jsonv: merge patch is %s, not object", patch.kind)
	}
	out := v
	for _, k := range patch.obj.keys {
		out = out.With(k, patch.obj.fields[k])
	}
	return out, nil
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		arr := make([]Value, len(v.arr))
		for i, e := range v.arr {
			arr[i] = e.Clone()
		}
		return Value{kind: Array, arr: arr}
	case Object:
		o := &object{
			keys:   append([]string(nil), v.obj.keys...),
			fields: make(map[string]Value, len(v.obj.fields)),
		}
		for k, f := range v.obj.fields {
			o.fields[k] = f.Clone()
		}
		return Value{kind: Object, obj: o}
	default:
		return v
	}
}

// Equal reports deep structural equality. Object key order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.n == b.n || (math.IsNaN(a.n) && math.IsNaN(b.n))
	case String:
		return a.s == b.s
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj.fields) != len(b.obj.fields) {
			return false
		}
		for k, af := range a.obj.fields {
			bf, ok := b.obj.fields[k]
			if !ok || !Equal(af, bf) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid %s>", v.kind)
	}
	return string(b)
}

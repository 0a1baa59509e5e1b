package crud

import (
	"github.com/stevemurr/reactive-docstore/jsonv"
)

// Codec converts between an entity and its stored JSON form.
type Codec[T any] struct {
	Encode func(T) (jsonv.Value, error)
	Decode func(jsonv.Value) (T, error)
}

// JSONCodec maps T through encoding/json, honouring struct tags.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) (jsonv.Value, error) {
			return jsonv.Encode(v)
		},
		Decode: func(v jsonv.Value) (T, error) {
			var out T
			err := jsonv.Decode(v, &out)
			return out, err
		},
	}
}

// ValueCodec stores values untouched.
func ValueCodec() Codec[jsonv.Value] {
	return Codec[jsonv.Value]{
		Encode: func(v jsonv.Value) (jsonv.Value, error) { return v, nil },
		Decode: func(v jsonv.Value) (jsonv.Value, error) { return v, nil },
	}
}

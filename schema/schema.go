// Package schema provides JSON Schema validation for collection documents.
package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stevemurr/reactive-docstore/jsonv"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("schema validation failed")

// Validate checks a document against a JSON Schema (draft-07 subset).
// Returns nil if validation passes or the schema is null.
//
// Supported JSON Schema keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties
//   - items (for arrays)
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength
//   - minItems, maxItems
//   - enum
func Validate(schema, doc jsonv.Value) error {
	if schema.IsNull() {
		return nil
	}
	if err := validateValue(schema, doc, "$"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// CheckSchema rejects schemas Validate cannot interpret.
func CheckSchema(schema jsonv.Value) error {
	if schema.Kind() != jsonv.Object {
		return fmt.Errorf("schema must be an object, got %s", kindName(schema))
	}
	if t, ok := schema.Get("type"); ok {
		name, ok := t.Str()
		if !ok {
			return fmt.Errorf("schema type must be a string")
		}
		switch name {
		case "string", "number", "integer", "boolean", "object", "array", "null":
		default:
			return fmt.Errorf("unknown schema type %q", name)
		}
	}
	if props, ok := schema.Get("properties"); ok {
		if props.Kind() != jsonv.Object {
			return fmt.Errorf("properties must be an object")
		}
		for _, f := range props.Fields() {
			if err := CheckSchema(f.Value); err != nil {
				return fmt.Errorf("properties.%s: %w", f.Key, err)
			}
		}
	}
	if items, ok := schema.Get("items"); ok {
		if err := CheckSchema(items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	return nil
}

func validateValue(schema, value jsonv.Value, path string) error {
	if t, ok := schema.Get("type"); ok {
		if ts, ok := t.Str(); ok {
			if err := checkType(ts, value, path); err != nil {
				return err
			}
		}
	}

	if enum, ok := schema.Get("enum"); ok && enum.Kind() == jsonv.Array {
		if err := checkEnum(enum, value, path); err != nil {
			return err
		}
	}

	switch value.Kind() {
	case jsonv.Object:
		return validateObject(schema, value, path)
	case jsonv.Array:
		return validateArray(schema, value, path)
	case jsonv.String:
		s, _ := value.Str()
		return validateString(schema, s, path)
	case jsonv.Number:
		n, _ := value.Number()
		return validateNumber(schema, n, path)
	}
	return nil
}

func checkType(expected string, value jsonv.Value, path string) error {
	actual := kindName(value)
	switch {
	case expected == "integer":
		if n, ok := value.Number(); ok && n == math.Trunc(n) && !math.IsInf(n, 0) {
			return nil
		}
	case expected == actual:
		return nil
	}
	return fmt.Errorf("%s: expected type %q, got %q", path, expected, actual)
}

func kindName(v jsonv.Value) string {
	switch v.Kind() {
	case jsonv.Object:
		return "object"
	case jsonv.Array:
		return "array"
	case jsonv.String:
		return "string"
	case jsonv.Bool:
		return "boolean"
	case jsonv.Number:
		return "number"
	default:
		return "null"
	}
}

func checkEnum(allowed, value jsonv.Value, path string) error {
	for _, a := range allowed.Elements() {
		if jsonv.Equal(a, value) {
			return nil
		}
	}
	return fmt.Errorf("%s: value not in enum %s", path, allowed)
}

func validateObject(schema, obj jsonv.Value, path string) error {
	if req, ok := schema.Get("required"); ok {
		for _, r := range req.Elements() {
			if field, ok := r.Str(); ok {
				if _, exists := obj.Get(field); !exists {
					return fmt.Errorf("%s: missing required field %q", path, field)
				}
			}
		}
	}

	props, _ := schema.Get("properties")
	for _, p := range props.Fields() {
		val, exists := obj.Get(p.Key)
		if !exists || p.Value.Kind() != jsonv.Object {
			continue
		}
		if err := validateValue(p.Value, val, path+"."+p.Key); err != nil {
			return err
		}
	}

	if ap, ok := schema.Get("additionalProperties"); ok {
		if allowed, ok := ap.Bool(); ok && !allowed {
			var extra []string
			for _, key := range obj.Keys() {
				if _, defined := props.Get(key); !defined {
					extra = append(extra, key)
				}
			}
			if len(extra) > 0 {
				return fmt.Errorf("%s: additional properties not allowed: %s", path, strings.Join(extra, ", "))
			}
		}
	}
	return nil
}

func validateArray(schema, arr jsonv.Value, path string) error {
	if v, ok := number(schema, "minItems"); ok && float64(arr.Len()) < v {
		return fmt.Errorf("%s: array length %d is less than minItems %v", path, arr.Len(), v)
	}
	if v, ok := number(schema, "maxItems"); ok && float64(arr.Len()) > v {
		return fmt.Errorf("%s: array length %d is greater than maxItems %v", path, arr.Len(), v)
	}
	if items, ok := schema.Get("items"); ok && items.Kind() == jsonv.Object {
		for i, elem := range arr.Elements() {
			if err := validateValue(items, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateString(schema jsonv.Value, s string, path string) error {
	n := len([]rune(s))
	if v, ok := number(schema, "minLength"); ok && float64(n) < v {
		return fmt.Errorf("%s: string length %d is less than minLength %v", path, n, v)
	}
	if v, ok := number(schema, "maxLength"); ok && float64(n) > v {
		return fmt.Errorf("%s: string length %d is greater than maxLength %v", path, n, v)
	}
	return nil
}

func validateNumber(schema jsonv.Value, n float64, path string) error {
	if v, ok := number(schema, "minimum"); ok && n < v {
		return fmt.Errorf("%s: %v is less than minimum %v", path, n, v)
	}
	if v, ok := number(schema, "maximum"); ok && n > v {
		return fmt.Errorf("%s: %v is greater than maximum %v", path, n, v)
	}
	if v, ok := number(schema, "exclusiveMinimum"); ok && n <= v {
		return fmt.Errorf("%s: %v is not greater than exclusiveMinimum %v", path, n, v)
	}
	if v, ok := number(schema, "exclusiveMaximum"); ok && n >= v {
		return fmt.Errorf("%s: %v is not less than exclusiveMaximum %v", path, n, v)
	}
	return nil
}

func number(schema jsonv.Value, key string) (float64, bool) {
	v, ok := schema.Get(key)
	if !ok {
		return 0, false
	}
	return v.Number()
}

package jsonv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/reactive-docstore/jsonv"
)

func TestEqualIgnoresKeyOrder(t *testing.T) {
	a := jsonv.ObjectValue(jsonv.F("a", jsonv.NumberValue(1)), jsonv.F("b", jsonv.StringValue("x")))
	b := jsonv.ObjectValue(jsonv.F("b", jsonv.StringValue("x")), jsonv.F("a", jsonv.NumberValue(1)))
	assert.True(t, jsonv.Equal(a, b))

	c := a.With("a", jsonv.NumberValue(2))
	assert.False(t, jsonv.Equal(a, c))
}

func TestEqualNested(t *testing.T) {
	a := jsonv.MustFromAny(map[string]any{"tags": []any{"x", "y"}, "meta": map[string]any{"n": 1.0}})
	b := jsonv.MustFromAny(map[string]any{"tags": []any{"x", "y"}, "meta": map[string]any{"n": 1.0}})
	assert.True(t, jsonv.Equal(a, b))

	d := jsonv.MustFromAny(map[string]any{"tags": []any{"y", "x"}, "meta": map[string]any{"n": 1.0}})
	assert.False(t, jsonv.Equal(a, d))

	assert.False(t, jsonv.Equal(jsonv.NullValue(), jsonv.BoolValue(false)))
	assert.False(t, jsonv.Equal(jsonv.NumberValue(0), jsonv.StringValue("0")))
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := jsonv.MustFromAny(map[string]any{"list": []any{1.0}})
	cp := orig.Clone()
	mod := cp.With("list", jsonv.ArrayValue(jsonv.NumberValue(2)))

	list, ok := orig.Get("list")
	require.True(t, ok)
	first, _ := list.Index(0)
	n, _ := first.Number()
	assert.Equal(t, 1.0, n)
	assert.False(t, jsonv.Equal(orig, mod))
}

func TestJSONKeepsKeyOrder(t *testing.T) {
	v, err := jsonv.Parse([]byte(`{"z":1,"a":[true,null,"s"],"m":{"y":2,"b":3}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":[true,null,"s"],"m":{"y":2,"b":3}}`, string(out))
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := jsonv.Parse([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := jsonv.ObjectValue(
		jsonv.F("name", jsonv.StringValue("Alice")),
		jsonv.F("address", jsonv.MustFromAny(map[string]any{"city": "Paris", "zip": "75001"})),
	)
	patch := jsonv.ObjectValue(
		jsonv.F("age", jsonv.NumberValue(30)),
		jsonv.F("address", jsonv.MustFromAny(map[string]any{"city": "Lyon"})),
	)
	merged, err := jsonv.Merge(base, patch)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "address", "age"}, merged.Keys())
	addr, _ := merged.Get("address")
	_, hasZip := addr.Get("zip")
	assert.False(t, hasZip, "nested objects are replaced, not merged")

	_, err = jsonv.Merge(jsonv.NumberValue(1), patch)
	assert.Error(t, err)
	_, err = jsonv.Merge(base, jsonv.ArrayValue())
	assert.Error(t, err)
}

func TestEncodeDecodeStruct(t *testing.T) {
	type user struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	v, err := jsonv.Encode(user{Name: "Alice", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, v.Keys())

	var got user
	require.NoError(t, jsonv.Decode(v, &got))
	assert.Equal(t, user{Name: "Alice", Age: 30}, got)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := jsonv.FromAny(struct{}{})
	assert.ErrorIs(t, err, jsonv.ErrUnsupported)
}

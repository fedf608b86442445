package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "x",
		"n":     int64(2),
		"f":     float64(3),
		"flags": []any{true, nil},
	})
	require.NoError(t, err)

	want := Object{
		"name":  String("x"),
		"n":     Int(2),
		"f":     Int(3),
		"flags": Array{Bool(true), Null{}},
	}
	assert.True(t, Equal(want, v), "got %#v", v)
}

func TestFromGoRejectsFractionalFloat(t *testing.T) {
	_, err := FromGo(1.5)
	require.Error(t, err)
}

func TestFromGoYAMLMap(t *testing.T) {
	v, err := FromGo(map[any]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, Equal(Object{"a": Int(1)}, v))

	_, err = FromGo(map[any]any{1: "a"})
	require.Error(t, err)
}

func TestToGoRoundTrip(t *testing.T) {
	orig := Object{"a": Array{Int(1), String("s"), Null{}}, "b": Bool(true)}

	back, err := FromGo(ToGo(orig))
	require.NoError(t, err)
	assert.True(t, Equal(orig, back))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("1"), Int(1)))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(1), Int(2)}))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"b": Int(1)}))
}

func TestUnmarshalValueRejectsFloat(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"a": 1.25}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestUnmarshalValueNull(t *testing.T) {
	v, err := UnmarshalValue([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)
}

func TestObjectJSONSortedKeys(t *testing.T) {
	data, err := json.Marshal(Object{"b": Int(1), "a": String("x")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(data))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "null", KindOf(nil))
	assert.Equal(t, "string", KindOf(String("")))
	assert.Equal(t, "int", KindOf(Int(0)))
	assert.Equal(t, "bool", KindOf(Bool(false)))
	assert.Equal(t, "array", KindOf(Array{}))
	assert.Equal(t, "object", KindOf(Object{}))
}

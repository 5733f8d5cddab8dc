package ir

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(Null{}))
	assert.True(t, IsScalar(String("x")))
	assert.True(t, IsScalar(Int(1)))
	assert.True(t, IsScalar(Bool(false)))
	assert.False(t, IsScalar(Array{}))
	assert.False(t, IsScalar(Object{}))
	assert.False(t, IsScalar(nil))
}

func TestObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := Object{
		"b":  Int(1),
		"a":  Int(2),
		"A":  Int(3),
		"aa": Int(4),
	}
	assert.Equal(t, []string{"A", "a", "aa", "b"}, obj.SortedKeys())
}

func TestFromNative(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"bytes", []byte("blob"), String("blob")},
		{"bool", true, Bool(true)},
		{"int", 7, Int(7)},
		{"int8", int8(-3), Int(-3)},
		{"uint16", uint16(9), Int(9)},
		{"int64", int64(1) << 40, Int(1 << 40)},
		{"integral float", float64(12), Int(12)},
		{"json number", json.Number("42"), Int(42)},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), String("2024-01-02T03:04:05Z")},
		{"slice", []any{"a", int64(1)}, Array{String("a"), Int(1)}},
		{"map", map[string]any{"k": nil}, Object{"k": Null{}}},
		{"yaml map", map[any]any{"k": 1}, Object{"k": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromNativeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"fractional float", 1.5},
		{"json float", json.Number("1.0")},
		{"json exponent", json.Number("1e3")},
		{"huge uint", uint64(math.MaxUint64)},
		{"non-string key", map[any]any{1: "x"}},
		{"struct", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNative(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestToNative(t *testing.T) {
	v := Object{
		"a": Array{Int(1), String("s"), Null{}, Bool(true)},
	}
	assert.Equal(t, map[string]any{
		"a": []any{int64(1), "s", nil, true},
	}, ToNative(v))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"n": 9007199254740993, "s": "x", "z": null}`))
	require.NoError(t, err)
	assert.Equal(t, Object{
		"n": Int(9007199254740993),
		"s": String("x"),
		"z": Null{},
	}, v)

	_, err = UnmarshalValue([]byte(`{"f": 1.25}`))
	assert.Error(t, err)

	_, err = UnmarshalValue([]byte(`{} {}`))
	assert.Error(t, err)
}

package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// IndexedValue is a value paired with the positional indices that locate it
// inside nested repeated structures. An empty Indices slice means the value
// is not nested in any array.
type IndexedValue struct {
	Indices []int `json:"indices"`
	Value   Value `json:"value"`
}

// At creates an IndexedValue at the given indices.
func At(v Value, indices ...int) IndexedValue {
	if indices == nil {
		indices = []int{}
	}
	return IndexedValue{Indices: indices, Value: v}
}

// MarshalJSON implements json.Marshaler. Indices are always emitted as an
// array, never null.
func (iv IndexedValue) MarshalJSON() ([]byte, error) {
	indices := iv.Indices
	if indices == nil {
		indices = []int{}
	}
	idx, err := json.Marshal(indices)
	if err != nil {
		return nil, err
	}
	val, err := MarshalValue(iv.Value)
	if err != nil {
		return nil, err
	}
	return []byte(`{"indices":` + string(idx) + `,"value":` + string(val) + `}`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (iv *IndexedValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Indices []int           `json:"indices"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	iv.Indices = raw.Indices
	if iv.Indices == nil {
		iv.Indices = []int{}
	}
	if len(raw.Value) == 0 {
		iv.Value = Null{}
		return nil
	}

	v, err := UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("indexed value: %w", err)
	}
	iv.Value = v
	return nil
}

// Object converts the indexed value into an Object suitable for canonical
// encoding: {"indices": [...], "value": ...}.
func (iv IndexedValue) Object() Object {
	indices := make(Array, len(iv.Indices))
	for i, n := range iv.Indices {
		indices[i] = Int(n)
	}
	value := iv.Value
	if value == nil {
		value = Null{}
	}
	return Object{"indices": indices, "value": value}
}

// CompareIndices orders index tuples lexicographically; a proper prefix
// sorts before its extensions.
func CompareIndices(a, b []int) int {
	return slices.Compare(a, b)
}

// HasPrefix reports whether indices starts with prefix.
func HasPrefix(indices, prefix []int) bool {
	return len(indices) >= len(prefix) && slices.Equal(indices[:len(prefix)], prefix)
}

// IndexKey renders an index tuple as a stable map key ("" for the empty tuple).
func IndexKey(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// SortIndexed orders values by their index tuples. The sort is stable so
// duplicates keep caller order.
func SortIndexed(values []IndexedValue) {
	slices.SortStableFunc(values, func(a, b IndexedValue) int {
		return CompareIndices(a.Indices, b.Indices)
	})
}

// DependencyValues maps a Reference id to the current values behind it,
// one entry per element of every enclosing array.
type DependencyValues map[string][]IndexedValue

// Single builds DependencyValues holding one non-nested value per reference.
func Single(values map[string]Value) DependencyValues {
	out := make(DependencyValues, len(values))
	for ref, v := range values {
		out[ref] = []IndexedValue{At(v)}
	}
	return out
}

// Snapshot flattens the non-nested entries into an Object keyed by
// reference id. Nested entries are collected into arrays ordered by index.
func (d DependencyValues) Snapshot() Object {
	out := make(Object, len(d))
	for ref, values := range d {
		if len(values) == 1 && len(values[0].Indices) == 0 {
			out[ref] = orNull(values[0].Value)
			continue
		}
		sorted := slices.Clone(values)
		SortIndexed(sorted)
		arr := make(Array, len(sorted))
		for i, iv := range sorted {
			arr[i] = orNull(iv.Value)
		}
		out[ref] = arr
	}
	return out
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

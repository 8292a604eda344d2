package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSONRoundTrip(t *testing.T) {
	original := MapValue(ValueMap{
		"name":   StringValue("echo"),
		"count":  IntValue(3),
		"ratio":  FloatValue(0.5),
		"ok":     BoolValue(true),
		"absent": NullValue(),
		"items":  ArrayValue([]Value{StringValue("a"), IntValue(1)}),
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))

	m, ok := decoded.Map()
	require.True(t, ok)

	name, ok := m["name"].String()
	require.True(t, ok)
	assert.Equal(t, "echo", name)

	count, ok := m["count"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(3), count)

	ratio, ok := m["ratio"].Float()
	require.True(t, ok)
	assert.Equal(t, 0.5, ratio)

	ok2, ok := m["ok"].Bool()
	require.True(t, ok)
	assert.True(t, ok2)

	assert.True(t, m["absent"].IsNull())

	items, ok := m["items"].Array()
	require.True(t, ok)
	require.Len(t, items, 2)
	s, _ := items[0].String()
	assert.Equal(t, "a", s)
}

func TestValueIntSurvivesFloat64JSONDecode(t *testing.T) {
	// json.Unmarshal always produces float64 for numbers; fromAny must
	// recover integral values as IntValue so round-tripped args stay typed.
	data := []byte(`42`)
	var v Value
	require.NoError(t, json.Unmarshal(data, &v))
	i, ok := v.Int()
	require.True(t, ok)
	assert.Equal(t, int64(42), i)
}

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Kinds(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		val  Value
		kind ValueKind
	}{
		{"string", StringValue("approved"), KindString},
		{"int", IntValue(42), KindInt},
		{"float", FloatValue(3.5), KindFloat},
		{"bool", BoolValue(true), KindBool},
		{"time", TimeValue(now), KindTime},
		{"map", MapValue(Variables{"inner": IntValue(1)}), KindMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.val.Kind())
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	s, ok := StringValue("x").AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	// Wrong-kind access reports false.
	_, ok = StringValue("x").AsInt()
	assert.False(t, ok)

	i, ok := IntValue(7).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(7), i)
}

func TestValueOf_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)

	vars := Variables{
		"approver":  StringValue("m.santos"),
		"amount":    FloatValue(1249.99),
		"attempts":  IntValue(3),
		"expedited": BoolValue(false),
		"deadline":  TimeValue(now),
		"audit": MapValue(Variables{
			"source": StringValue("import"),
		}),
	}

	// Through the driver parameter form and back.
	params := vars.Params()
	decoded, err := VariablesOf(params)
	require.NoError(t, err)

	assert.Equal(t, vars, decoded)
}

func TestValueOf_UnsupportedType(t *testing.T) {
	_, err := ValueOf([]byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported variable value type")
}

func TestValue_JSONRoundTrip(t *testing.T) {
	vars := Variables{
		"count":   IntValue(9),
		"ratio":   FloatValue(9.0),
		"label":   StringValue("9"),
		"due":     TimeValue(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		"flagged": BoolValue(true),
		"nested":  MapValue(Variables{"deep": StringValue("value")}),
	}

	data, err := json.Marshal(vars)
	require.NoError(t, err)

	var decoded Variables
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Tagged encoding keeps int and float distinct even when numerically equal.
	assert.Equal(t, vars, decoded)
	assert.Equal(t, KindInt, decoded["count"].Kind())
	assert.Equal(t, KindFloat, decoded["ratio"].Kind())
}

func TestVariables_Keys(t *testing.T) {
	vars := Variables{
		"zeta":  IntValue(1),
		"alpha": IntValue(2),
		"mid":   IntValue(3),
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, vars.Keys())
}

func TestVariables_Clone(t *testing.T) {
	vars := Variables{"k": StringValue("v")}
	clone := vars.Clone()

	clone["k"] = StringValue("changed")
	s, _ := vars["k"].AsString()
	assert.Equal(t, "v", s)

	assert.Nil(t, Variables(nil).Clone())
}

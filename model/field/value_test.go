package field

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	testCases := []struct {
		description string
		value       Value
		kind        ValueKind
		expect      string
	}{
		{description: "zero value is empty", value: Value{}, kind: ValueEmpty, expect: ""},
		{description: "empty", value: Empty(), kind: ValueEmpty, expect: ""},
		{description: "text", value: String("Acme"), kind: ValueString, expect: "Acme"},
		{description: "integral number", value: Number(3), kind: ValueNumber, expect: "3"},
		{description: "fractional number", value: Number(2.5), kind: ValueNumber, expect: "2.5"},
		{description: "bool", value: Bool(true), kind: ValueBool, expect: "true"},
		{description: "date", value: Date(time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC)), kind: ValueDate, expect: "2024-03-09"},
	}
	for _, testCase := range testCases {
		assert.EqualValues(t, testCase.kind, testCase.value.Kind(), testCase.description)
		assert.EqualValues(t, testCase.expect, testCase.value.String(), testCase.description)
		assert.EqualValues(t, testCase.kind == ValueEmpty, testCase.value.IsEmpty(), testCase.description)
	}
}

func TestValue_Equal(t *testing.T) {
	testCases := []struct {
		description string
		left        Value
		right       Value
		expect      bool
	}{
		{description: "same text", left: String("a"), right: String("a"), expect: true},
		{description: "different text", left: String("a"), right: String("b"), expect: false},
		{description: "number versus text", left: Number(1), right: String("1"), expect: false},
		{description: "empty versus zero value", left: Empty(), right: Value{}, expect: true},
		{description: "dates on the same day", left: Date(time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)), right: Date(time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC)), expect: true},
	}
	for _, testCase := range testCases {
		assert.EqualValues(t, testCase.expect, testCase.left.Equal(testCase.right), testCase.description)
	}
}

func TestValue_JSON(t *testing.T) {
	testCases := []struct {
		description string
		value       Value
		expect      string
	}{
		{description: "empty", value: Empty(), expect: `null`},
		{description: "text", value: String("x"), expect: `"x"`},
		{description: "number", value: Number(42.5), expect: `42.5`},
		{description: "bool", value: Bool(false), expect: `false`},
		{description: "date", value: Date(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)), expect: `{"date":"2023-12-31"}`},
	}
	for _, testCase := range testCases {
		data, err := json.Marshal(testCase.value)
		require.NoError(t, err, testCase.description)
		assert.EqualValues(t, testCase.expect, string(data), testCase.description)

		var decoded Value
		require.NoError(t, json.Unmarshal(data, &decoded), testCase.description)
		assert.True(t, testCase.value.Equal(decoded), testCase.description)
	}
}

func TestValue_UnmarshalJSON_Invalid(t *testing.T) {
	for _, input := range []string{`[1]`, `{"day":"2023-01-01"}`, `{"date":"31/12/2023"}`} {
		var v Value
		assert.Error(t, json.Unmarshal([]byte(input), &v), input)
	}
}

// Package field defines the tagged unions used to carry submission payloads:
// Node for raw decoded field payloads and Value for normalized scalars.
package field

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies the scalar held by a Value.
type ValueKind string

const (
	ValueEmpty  ValueKind = "empty"
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueDate   ValueKind = "date"
)

// DateLayout is the canonical textual form of a date value.
const DateLayout = "2006-01-02"

// Value is a normalized scalar answer. The zero Value is Empty.
type Value struct {
	kind   ValueKind
	text   string
	number float64
	flag   bool
	date   time.Time
}

// Empty returns the sentinel used when nothing could be extracted.
func Empty() Value { return Value{kind: ValueEmpty} }

// String returns a text value.
func String(s string) Value { return Value{kind: ValueString, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: ValueNumber, number: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: ValueBool, flag: b} }

// Date returns a date value truncated to the UTC day.
func Date(t time.Time) Value {
	t = t.UTC()
	return Value{kind: ValueDate, date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Kind returns the value kind.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return ValueEmpty
	}
	return v.kind
}

// IsEmpty reports whether v is the empty sentinel.
func (v Value) IsEmpty() bool { return v.Kind() == ValueEmpty }

// Text returns the string payload.
func (v Value) Text() string { return v.text }

// Float returns the numeric payload.
func (v Value) Float() float64 { return v.number }

// Flag returns the boolean payload.
func (v Value) Flag() bool { return v.flag }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.date }

// String renders the value the way answers are matched against a rubric.
func (v Value) String() string {
	switch v.Kind() {
	case ValueString:
		return v.text
	case ValueNumber:
		return formatFloat(v.number)
	case ValueBool:
		return strconv.FormatBool(v.flag)
	case ValueDate:
		return v.date.Format(DateLayout)
	}
	return ""
}

// Equal reports whether both values carry the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	return v.String() == o.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type dateJSON struct {
	Date string `json:"date"`
}

// MarshalJSON encodes scalars natively, dates as {"date":"YYYY-MM-DD"} and empty as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case ValueString:
		return json.Marshal(v.text)
	case ValueNumber:
		return []byte(formatFloat(v.number)), nil
	case ValueBool:
		return json.Marshal(v.flag)
	case ValueDate:
		return json.Marshal(dateJSON{Date: v.date.Format(DateLayout)})
	}
	return []byte("null"), nil
}

// UnmarshalJSON reverses MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch actual := raw.(type) {
	case nil:
		*v = Empty()
	case string:
		*v = String(actual)
	case float64:
		*v = Number(actual)
	case bool:
		*v = Bool(actual)
	case map[string]interface{}:
		text, ok := actual["date"].(string)
		if !ok {
			return fmt.Errorf("invalid value object: %s", data)
		}
		t, err := time.Parse(DateLayout, text)
		if err != nil {
			return fmt.Errorf("invalid date value %q: %w", text, err)
		}
		*v = Date(t)
	default:
		return fmt.Errorf("unsupported value: %s", data)
	}
	return nil
}

// Package xjson holds small JSON helpers shared across the codebase.
package xjson

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

var (
	EmptyJSON      = []byte("{}")
	NullJSON       = []byte("null")
	EmptyArrayJSON = []byte("[]")
)

// To unmarshals data into a value of type T.
func To[T any](data []byte) (T, error) {
	var value T

	err := json.Unmarshal(data, &value)

	return value, err
}

// MustMarshal marshals v and panics on failure. Reserved for values that are
// marshalable by construction.
func MustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return data
}

// SafeJSONRawMessage returns input as a raw JSON message, repairing invalid
// JSON when possible and falling back to a JSON string of the input.
func SafeJSONRawMessage(input string) json.RawMessage {
	if input == "" {
		return json.RawMessage(EmptyJSON)
	}

	if json.Valid([]byte(input)) {
		return json.RawMessage(input)
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}

	return MustMarshal(input)
}

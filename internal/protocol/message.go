package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotObject = errors.New("record is not a JSON object")
var ErrMissingAction = errors.New("record has no action")
var ErrInvalidAction = errors.New("record action is not a string")

// Message is one decoded server record. It is never mutated after ParseRecord
// returns it.
type Message struct {
	Action string
	fields map[string]json.RawMessage
}

// ParseRecord decodes a single record (without its delimiter).
func ParseRecord(b []byte) (Message, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return Message{}, ErrNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Message{}, fmt.Errorf("decode record: %w", err)
	}

	raw, ok := fields["action"]
	if !ok {
		return Message{}, ErrMissingAction
	}
	var action string
	if err := json.Unmarshal(raw, &action); err != nil {
		return Message{}, ErrInvalidAction
	}

	return Message{Action: action, fields: fields}, nil
}

// MustParseRecord is ParseRecord for literals known to be valid.
func MustParseRecord(s string) Message {
	m, err := ParseRecord([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("protocol: bad record %q: %v", s, err))
	}
	return m
}

// Has reports whether the record carries key, even with a null value.
func (m Message) Has(key string) bool {
	_, ok := m.fields[key]
	return ok
}

// Raw returns a copy of the undecoded value for key.
func (m Message) Raw(key string) (json.RawMessage, bool) {
	raw, ok := m.fields[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

// String returns the string value for key, or def when the key is missing,
// null, or does not hold a string.
func (m Message) String(key, def string) string {
	raw, ok := m.fields[key]
	if !ok || isNull(raw) {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	return s
}

// Strings returns the string entries of the array under key. Non-string entries
// are skipped; a missing or non-array value yields nil.
func (m Message) Strings(key string) []string {
	raw, ok := m.fields[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if isNull(item) {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Value decodes the value for key into a generic Go value.
func (m Message) Value(key string) (any, bool) {
	raw, ok := m.fields[key]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Truthy reports the truthiness of the value under key: null, false, 0, "",
// [] and {} are false. A missing key yields def.
func (m Message) Truthy(key string, def bool) bool {
	v, ok := m.Value(key)
	if !ok {
		return def
	}
	return truthy(v)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TriState is a boolean that can also be undecided.
type TriState uint8

const (
	// Unset means no resolver has decided the value yet
	Unset TriState = iota
	// True is an explicit true decision
	True
	// False is an explicit false decision
	False
)

// Of converts a bool into a decided TriState
func Of(b bool) TriState {
	if b {
		return True
	}
	return False
}

// IsSet reports whether a decision was made
func (t TriState) IsSet() bool {
	return t != Unset
}

// Bool returns true only for True. Unset reads as false.
func (t TriState) Bool() bool {
	return t == True
}

// Or returns t when it is set and fallback otherwise
func (t TriState) Or(fallback TriState) TriState {
	if t.IsSet() {
		return t
	}
	return fallback
}

// String returns the string representation of TriState
func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

// MarshalJSON encodes Unset as null
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, true and false
func (t *TriState) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = Unset
	case bytes.Equal(data, []byte("true")):
		*t = True
	case bytes.Equal(data, []byte("false")):
		*t = False
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid tri-state value %s", data)
		}
		return t.UnmarshalText([]byte(s))
	}
	return nil
}

// UnmarshalText accepts "true", "false" and "" (unset). It lets YAML and
// config decoders fill TriState fields from plain strings.
func (t *TriState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "", "null", "unset":
		*t = Unset
	default:
		return fmt.Errorf("invalid tri-state value %q", text)
	}
	return nil
}

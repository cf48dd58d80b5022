package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

type idKind uint8

const (
	idUnset idKind = iota
	idString
	idNumber
)

// ID is the identity of an entity or aggregate. It holds a string, a number,
// or nothing; the zero value is unset. IDs are comparable with ==.
type ID struct {
	kind idKind
	str  string
	num  float64
}

// StringID returns a string identity.
func StringID(s string) ID {
	return ID{kind: idString, str: s}
}

// NumberID returns a numeric identity.
func NumberID(n float64) ID {
	return ID{kind: idNumber, num: n}
}

// NewID returns a random UUID string identity.
func NewID() ID {
	return StringID(uuid.NewString())
}

// IsSet reports whether the identity carries a value.
func (id ID) IsSet() bool { return id.kind != idUnset }

// IsNumber reports whether the identity is numeric.
func (id ID) IsNumber() bool { return id.kind == idNumber }

// Value returns the identity as a string, a float64, or nil when unset.
func (id ID) Value() any {
	switch id.kind {
	case idString:
		return id.str
	case idNumber:
		return id.num
	default:
		return nil
	}
}

// String renders the identity; unset identities render as "undefined".
func (id ID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idNumber:
		return strconv.FormatFloat(id.num, 'f', -1, 64)
	default:
		return "undefined"
	}
}

// MarshalJSON encodes the identity as a JSON string, number or null.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idString:
		return json.Marshal(id.str)
	case idNumber:
		return json.Marshal(id.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ID{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id must be a string, number or null: %w", err)
	}
	*id = NumberID(n)
	return nil
}

package job

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is the caller's opaque job token. It keeps the exact JSON text it was
// decoded from, so numbers and strings are echoed unchanged.
type ID struct {
	raw string
}

// StringID builds an ID from a Go string.
func StringID(s string) ID {
	b, _ := json.Marshal(s)
	return ID{raw: string(b)}
}

// NumberID builds an ID from an integer.
func NumberID(n int64) ID {
	return ID{raw: strconv.FormatInt(n, 10)}
}

// IsZero reports whether no id was supplied.
func (id ID) IsZero() bool { return id.raw == "" || id.raw == "null" }

// String returns string ids unquoted and anything else as raw JSON.
func (id ID) String() string {
	if id.raw == "" {
		return ""
	}
	if id.raw[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(id.raw), &s); err == nil {
			return s
		}
	}
	return id.raw
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw == "" {
		return []byte("null"), nil
	}
	return []byte(id.raw), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	id.raw = string(bytes.TrimSpace(b))
	return nil
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a server-assigned record identifier.
// The API emits numeric and string identifiers; both decode into ID and compare as strings.
type ID string

// ParseID validates an identifier supplied on the command line before it is placed in a URL path.
func ParseID(value string) (ID, error) {
	id := ID(strings.TrimSpace(value))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks that the ID is usable as a single path segment
func (id ID) Validate() error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if strings.ContainsAny(s, "/?# \t\n") {
		return fmt.Errorf("ID %q must not contain '/', '?', '#' or whitespace", s)
	}
	return nil
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether no identifier is set
func (id ID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts JSON numbers, strings, and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid ID %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric IDs back as numbers so persisted records match the server shape.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NotAvailable is the literal rendered for unknown fields in exported reports.
const NotAvailable = "N/A"

// Field is a string value that is either known or unknown.
// The zero value is unknown.
type Field struct {
	value string
	known bool
}

// Unknown is the unknown Field.
var Unknown = Field{}

// Known returns a known Field holding v. Blank values are treated as unknown.
func Known(v string) Field {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	return Field{value: v, known: true}
}

// IsKnown reports whether the field carries a value.
func (f Field) IsKnown() bool { return f.known }

// Get returns the value and whether it is known.
func (f Field) Get() (string, bool) { return f.value, f.known }

// String returns the value, or "" when unknown.
func (f Field) String() string { return f.value }

// OrNA returns the value, or NotAvailable when unknown.
func (f Field) OrNA() string {
	if !f.known {
		return NotAvailable
	}
	return f.value
}

// Or returns f when known, otherwise other.
func (f Field) Or(other Field) Field {
	if f.known {
		return f
	}
	return other
}

// MarshalJSON encodes unknown as null.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.known {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON accepts null, a string, or the legacy "N/A" sentinel
// written by older checkpoint files.
func (f *Field) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Unknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == NotAvailable {
		*f = Unknown
		return nil
	}
	*f = Known(s)
	return nil
}

// Package tabular decodes delimited text blobs into typed, ordered records.
//
// The decoder is deliberately forgiving: short rows are padded, unparseable
// numbers become zero, missing flags become false, and structurally
// incomplete records are dropped rather than reported. The only failure
// signal is an empty result, which callers should surface to the user.
// Callers needing strict validation must add their own checks on top.
//
// All functions are pure and allocate no package-level state, so they are
// safe for concurrent use on independent inputs.
package tabular

import "strings"

// FieldType designates how a raw field value is coerced during decoding.
type FieldType int

const (
	// FieldText leaves the value as-is.
	FieldText FieldType = iota

	// FieldNumeric coerces to int, defaulting to 0 on parse failure.
	FieldNumeric

	// FieldFlag coerces to bool via a case-insensitive "true" match.
	FieldFlag
)

// FieldSpec designates the type of a single named column.
// Columns without a spec decode as text.
type FieldSpec struct {
	Name string    // Header name, matched case-insensitively
	Type FieldType // Coercion applied to values in this column
}

// Schema describes how a decoded batch maps onto records.
type Schema struct {
	// Delimiter separates fields within a row. Zero means comma.
	Delimiter byte

	// Body names the column whose presence determines record retention.
	// A record is kept only if this field, after trimming, is longer
	// than one character.
	Body string

	// Author names the column used to derive record identifiers.
	// When the value is empty the identifier falls back to a generic stem.
	Author string

	// Fields lists type designations for columns that are not plain text.
	Fields []FieldSpec
}

// delimiter returns the effective field delimiter.
func (s Schema) delimiter() byte {
	if s.Delimiter == 0 {
		return ','
	}
	return s.Delimiter
}

// typeOf returns the designated type for a header name.
func (s Schema) typeOf(name string) FieldType {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Type
		}
	}
	return FieldText
}

// Record is one decoded logical row exposed as named fields.
// Records are constructed once during decode and not mutated afterwards.
type Record struct {
	// ID is unique within a decoded batch and contains only
	// alphanumeric, hyphen and underscore characters.
	ID string `json:"id"`

	// Index is the zero-based position of the row among retained records'
	// source data rows (header excluded).
	Index int `json:"index"`

	// Fields holds the raw text value for every header name,
	// padded with empty strings when the source row was short.
	Fields map[string]string `json:"fields"`

	// Ints holds coerced values for columns designated FieldNumeric.
	Ints map[string]int `json:"ints,omitempty"`

	// Flags holds coerced values for columns designated FieldFlag.
	Flags map[string]bool `json:"flags,omitempty"`
}

// Body returns the record's body field value under the given schema.
func (r Record) Body(s Schema) string {
	for name, v := range r.Fields {
		if strings.EqualFold(name, s.Body) {
			return v
		}
	}
	return ""
}

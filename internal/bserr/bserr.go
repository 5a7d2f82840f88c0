// Package bserr defines the BitSchema error taxonomy: a closed set of
// error kinds for schema validation and encode-time value validation.
// Decode is total and never returns an error (see internal/codec).
package bserr

import "fmt"

// Kind identifies which rule an error violates. Kinds are grouped by
// the stage that can raise them: schema-load kinds never appear from
// an encode call, and vice versa.
type Kind string

const (
	UnknownVariant    Kind = "unknown_variant"
	MissingAttribute  Kind = "missing_attribute"
	InvalidIdentifier Kind = "invalid_identifier"

	DuplicateFieldName Kind = "duplicate_field_name"

	IntegerRangeInverted Kind = "integer_range_inverted"
	IntegerRangeOverflow Kind = "integer_range_overflow"

	EnumEmpty      Kind = "enum_empty"
	EnumTooLarge   Kind = "enum_too_large"
	EnumValueEmpty Kind = "enum_value_empty"
	EnumDuplicate  Kind = "enum_duplicate"

	DateRangeInverted Kind = "date_range_inverted"
	DateParseError    Kind = "date_parse_error"

	BitmaskPositionOutOfRange Kind = "bitmask_position_out_of_range"
	BitmaskPositionDuplicate  Kind = "bitmask_position_duplicate"
	BitmaskEmpty              Kind = "bitmask_empty"

	SchemaTooLarge Kind = "schema_too_large"

	MissingField     Kind = "missing_field"
	TypeMismatch     Kind = "type_mismatch"
	OutOfRange       Kind = "out_of_range"
	UnknownEnumValue Kind = "unknown_enum_value"
	UnknownFlag      Kind = "unknown_flag"
	NullNotAllowed   Kind = "null_not_allowed"
)

// maxEchoLen bounds how much of an offending value gets echoed back
// in an error, so a pathological input can't blow up error output.
const maxEchoLen = 200

// Clip truncates s for safe echoing in an error message.
func Clip(s string) string {
	if len(s) <= maxEchoLen {
		return s
	}
	return s[:maxEchoLen] + "...(truncated)"
}

// SchemaError is raised by schema validation and layout planning
// (§4.1, §4.2 of the spec). Path is a dotted "fields.<name>.<attr>"
// locator; schema-wide violations carry the top-level key instead
// ("name" or "fields").
type SchemaError struct {
	Kind  Kind
	Path  string
	Value string
	Msg   string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func NewSchemaError(kind Kind, path, value, format string, args ...any) *SchemaError {
	return &SchemaError{
		Kind:  kind,
		Path:  path,
		Value: Clip(value),
		Msg:   fmt.Sprintf(format, args...),
	}
}

// EncodingError is raised by Encode when a record fails validation
// (§4.4). Field is empty only for schema-wide failures like a set of
// missing required fields.
type EncodingError struct {
	Kind  Kind
	Field string
	Value string
	Msg   string
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Msg)
}

func NewEncodingError(kind Kind, field, value, format string, args ...any) *EncodingError {
	return &EncodingError{
		Kind:  kind,
		Field: field,
		Value: Clip(value),
		Msg:   fmt.Sprintf(format, args...),
	}
}

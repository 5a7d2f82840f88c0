package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitschema/bitschema/internal/schemaio"
)

func ptr(n int64) *int64 { return &n }

func validRawSchema() schemaio.RawSchema {
	return schemaio.RawSchema{
		Name:    "user_profile",
		Version: "1",
		Fields: []schemaio.RawField{
			{Name: "is_active", Type: "bool"},
			{Name: "age", Type: "int", Min: ptr(0), Max: ptr(130), Nullable: true},
			{Name: "role", Type: "enum", Values: []string{"admin", "member", "guest"}},
			{Name: "signup_date", Type: "date", Resolution: "day", MinDate: "2020-01-01", MaxDate: "2030-01-01"},
			{Name: "permissions", Type: "bitmask", Flags: []schemaio.RawFlag{
				{Name: "read", Position: 0}, {Name: "write", Position: 1}, {Name: "admin", Position: 2},
			}},
		},
	}
}

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	s, err := Validate(validRawSchema())
	require.NoError(t, err)
	require.Equal(t, "user_profile", s.Name)
	require.Len(t, s.Fields, 5)

	f, ok := s.Field("age")
	require.True(t, ok)
	require.Equal(t, KindInt, f.Kind)
	require.True(t, f.Nullable)
	require.Equal(t, int64(0), f.Int.Min)
	require.Equal(t, int64(130), f.Int.Max)
}

func TestValidateRejectsInvalidSchemaName(t *testing.T) {
	raw := validRawSchema()
	raw.Name = "1nvalid"
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateRejectsEmptyFieldList(t *testing.T) {
	_, err := Validate(schemaio.RawSchema{Name: "empty"})
	require.Error(t, err)
}

func TestValidateRejectsDuplicateFieldName(t *testing.T) {
	raw := validRawSchema()
	raw.Fields = append(raw.Fields, schemaio.RawField{Name: "age", Type: "bool"})
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateRejectsInvalidFieldName(t *testing.T) {
	raw := validRawSchema()
	raw.Fields[0].Name = "bad name"
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateRejectsMissingType(t *testing.T) {
	raw := validRawSchema()
	raw.Fields[0].Type = ""
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateRejectsUnknownType(t *testing.T) {
	raw := validRawSchema()
	raw.Fields[0].Type = "float"
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateIntRequiresMinMax(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{{Name: "a", Type: "int"}}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateIntRejectsInvertedRange(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "int", Min: ptr(10), Max: ptr(0)},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateIntRejectsOverflowingRange(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "int", Min: ptr(-(1 << 62)), Max: ptr(1 << 62), Nullable: true},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateEnumRejectsEmptyValues(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{{Name: "a", Type: "enum"}}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateEnumRejectsDuplicateValues(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "enum", Values: []string{"x", "x"}},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateEnumRejectsTooManyValues(t *testing.T) {
	values := make([]string, 256)
	for i := range values {
		values[i] = string(rune('a' + i%26))
	}
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "enum", Values: values},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateDateRequiresResolution(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "date", MinDate: "2020-01-01", MaxDate: "2021-01-01"},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateDateRejectsBadDates(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "date", Resolution: "day", MinDate: "not-a-date", MaxDate: "2021-01-01"},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateDateRejectsInvertedRange(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "date", Resolution: "day", MinDate: "2021-01-01", MaxDate: "2020-01-01"},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateBitmaskRejectsEmptyFlags(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{{Name: "a", Type: "bitmask"}}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateBitmaskRejectsDuplicatePosition(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "bitmask", Flags: []schemaio.RawFlag{{Name: "x", Position: 0}, {Name: "y", Position: 0}}},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidateBitmaskRejectsPositionOutOfRange(t *testing.T) {
	raw := schemaio.RawSchema{Name: "s", Fields: []schemaio.RawField{
		{Name: "a", Type: "bitmask", Flags: []schemaio.RawFlag{{Name: "x", Position: 64}}},
	}}
	_, err := Validate(raw)
	require.Error(t, err)
}

func TestParseISODateAcceptsMultipleLayouts(t *testing.T) {
	for _, s := range []string{"2021-06-01", "2021-06-01T00:00:00Z", "2021-06-01T00:00:00"} {
		_, err := ParseISODate(s)
		require.NoError(t, err, s)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	require.True(t, IsValidIdentifier("valid_name"))
	require.True(t, IsValidIdentifier("_private"))
	require.False(t, IsValidIdentifier("1invalid"))
	require.False(t, IsValidIdentifier("has space"))
	require.False(t, IsValidIdentifier(""))
}

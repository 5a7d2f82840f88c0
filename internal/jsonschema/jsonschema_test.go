package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
	"github.com/bitschema/bitschema/internal/schemaio"
)

func ptr(n int64) *int64 { return &n }

func buildSchema(t *testing.T) (*model.Schema, []layout.FieldLayout) {
	t.Helper()
	raw := schemaio.RawSchema{
		Name: "user_profile",
		Fields: []schemaio.RawField{
			{Name: "is_active", Type: "bool"},
			{Name: "nickname", Type: "enum", Values: []string{"alpha", "beta"}, Nullable: true},
			{Name: "age", Type: "int", Min: ptr(0), Max: ptr(130)},
		},
	}
	s, err := model.Validate(raw)
	require.NoError(t, err)
	layouts, _, err := layout.Plan(s)
	require.NoError(t, err)
	return s, layouts
}

func TestGenerateProducesDraft2020Document(t *testing.T) {
	s, layouts := buildSchema(t)
	doc := Generate(s, layouts)

	require.Equal(t, draft, doc["$schema"])
	require.Equal(t, "object", doc["type"])
	require.Equal(t, false, doc["additionalProperties"])

	props := doc["properties"].(map[string]any)
	require.Contains(t, props, "is_active")
	require.Contains(t, props, "nickname")
	require.Contains(t, props, "age")
}

func TestGenerateMarksNullableFieldsWithTypeArray(t *testing.T) {
	s, layouts := buildSchema(t)
	doc := Generate(s, layouts)
	props := doc["properties"].(map[string]any)

	nickname := props["nickname"].(map[string]any)
	require.Equal(t, []string{"string", "null"}, nickname["type"])
}

func TestGenerateOmitsNullableFieldsFromRequired(t *testing.T) {
	s, layouts := buildSchema(t)
	doc := Generate(s, layouts)
	required := doc["required"].([]string)

	require.Contains(t, required, "is_active")
	require.Contains(t, required, "age")
	require.NotContains(t, required, "nickname")
}

func TestGenerateIncludesBitschemaVendorExtensions(t *testing.T) {
	s, layouts := buildSchema(t)
	doc := Generate(s, layouts)
	props := doc["properties"].(map[string]any)

	age := props["age"].(map[string]any)
	require.Equal(t, int64(0), age["minimum"])
	require.Equal(t, int64(130), age["maximum"])
	require.Contains(t, age, "x-bitschema-offset")
	require.Contains(t, age, "x-bitschema-bits")
	require.Contains(t, doc, "x-bitschema-total-bits")
}

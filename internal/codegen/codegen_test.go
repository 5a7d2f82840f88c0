package codegen

import (
	"go/parser"
	"go/token"
	"strings"
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
			{Name: "age", Type: "int", Min: ptr(0), Max: ptr(130), Nullable: true},
			{Name: "role", Type: "enum", Values: []string{"admin", "member", "guest"}},
			{Name: "signup_date", Type: "date", Resolution: "day", MinDate: "2020-01-01", MaxDate: "2030-01-01"},
			{Name: "permissions", Type: "bitmask", Flags: []schemaio.RawFlag{
				{Name: "read", Position: 0}, {Name: "write", Position: 1}, {Name: "admin", Position: 2},
			}},
		},
	}
	s, err := model.Validate(raw)
	require.NoError(t, err)
	layouts, _, err := layout.Plan(s)
	require.NoError(t, err)
	return s, layouts
}

func TestGenerateProducesParseableGo(t *testing.T) {
	s, layouts := buildSchema(t)

	src, err := Generate(s, layouts, "generated")
	require.NoError(t, err)

	_, err = parser.ParseFile(token.NewFileSet(), "user_profile.go", src, parser.AllErrors)
	require.NoError(t, err)

	require.Contains(t, src, "package generated")
	require.Contains(t, src, "type UserProfile struct")
	require.Contains(t, src, "func (r UserProfile) Encode() uint64")
	require.Contains(t, src, "func DecodeUserProfile(word uint64) UserProfile")
}

func TestGenerateEmitsPointerFieldsForNullableColumns(t *testing.T) {
	s, layouts := buildSchema(t)
	src, err := Generate(s, layouts, "generated")
	require.NoError(t, err)
	require.True(t, strings.Contains(src, "Age") && strings.Contains(src, "*int64"))
}

func TestGenerateRejectsUnreachableKind(t *testing.T) {
	require.Panics(t, func() {
		goType(layout.FieldLayout{Kind: "unknown"})
	})
}

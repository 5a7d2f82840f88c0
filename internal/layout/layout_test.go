package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitschema/bitschema/internal/model"
	"github.com/bitschema/bitschema/internal/schemaio"
)

func ptr(n int64) *int64 { return &n }

func mustSchema(t *testing.T, raw schemaio.RawSchema) *model.Schema {
	t.Helper()
	s, err := model.Validate(raw)
	require.NoError(t, err)
	return s
}

func TestPlanAssignsOffsetsLSBFirstInDeclarationOrder(t *testing.T) {
	s := mustSchema(t, schemaio.RawSchema{
		Name: "s",
		Fields: []schemaio.RawField{
			{Name: "a", Type: "bool"},
			{Name: "b", Type: "int", Min: ptr(0), Max: ptr(255)},
			{Name: "c", Type: "bool"},
		},
	})

	layouts, total, err := Plan(s)
	require.NoError(t, err)
	require.Len(t, layouts, 3)

	require.Equal(t, "a", layouts[0].Name)
	require.Equal(t, uint8(0), layouts[0].Offset)
	require.Equal(t, uint8(1), layouts[0].Bits)

	require.Equal(t, "b", layouts[1].Name)
	require.Equal(t, uint8(1), layouts[1].Offset)
	require.Equal(t, uint8(8), layouts[1].Bits)

	require.Equal(t, "c", layouts[2].Name)
	require.Equal(t, uint8(9), layouts[2].Offset)
	require.Equal(t, uint8(1), layouts[2].Bits)

	require.Equal(t, 10, total)
}

func TestPlanAddsPresenceBitForNullableFields(t *testing.T) {
	s := mustSchema(t, schemaio.RawSchema{
		Name: "s",
		Fields: []schemaio.RawField{
			{Name: "a", Type: "bool", Nullable: true},
		},
	})

	layouts, total, err := Plan(s)
	require.NoError(t, err)
	require.Equal(t, uint8(2), layouts[0].Bits)
	require.Equal(t, uint8(0), layouts[0].Offset)
	require.Equal(t, uint8(1), layouts[0].ValueBits())
	require.Equal(t, uint8(1), layouts[0].ValueOffset())
	require.Equal(t, 2, total)
}

func TestPlanIsDeterministic(t *testing.T) {
	s := mustSchema(t, schemaio.RawSchema{
		Name: "s",
		Fields: []schemaio.RawField{
			{Name: "a", Type: "enum", Values: []string{"x", "y", "z"}},
			{Name: "b", Type: "bitmask", Flags: []schemaio.RawFlag{{Name: "f", Position: 5}}},
		},
	})

	l1, t1, err1 := Plan(s)
	require.NoError(t, err1)
	l2, t2, err2 := Plan(s)
	require.NoError(t, err2)

	require.Equal(t, l1, l2)
	require.Equal(t, t1, t2)
	require.Equal(t, uint8(6), l1[1].Bits) // highest declared position 5 => 6 bits
}

func TestPlanFailsWhenSchemaExceeds64Bits(t *testing.T) {
	fields := make([]schemaio.RawField, 0, 5)
	for i := 0; i < 5; i++ {
		fields = append(fields, schemaio.RawField{
			Name: string(rune('a' + i)), Type: "int", Min: ptr(0), Max: ptr(1 << 60),
		})
	}
	s := mustSchema(t, schemaio.RawSchema{Name: "s", Fields: fields})

	_, _, err := Plan(s)
	require.Error(t, err)
}

package bserr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClipLeavesShortStringsUntouched(t *testing.T) {
	require.Equal(t, "short", Clip("short"))
}

func TestClipTruncatesLongStrings(t *testing.T) {
	s := strings.Repeat("a", maxEchoLen+50)
	clipped := Clip(s)
	require.True(t, len(clipped) < len(s))
	require.True(t, strings.HasSuffix(clipped, "...(truncated)"))
}

func TestSchemaErrorFormatsWithPath(t *testing.T) {
	err := NewSchemaError(InvalidIdentifier, "fields.age.name", "1age", "identifier %q is invalid", "1age")
	require.Equal(t, "fields.age.name: identifier \"1age\" is invalid", err.Error())
	require.Equal(t, InvalidIdentifier, err.Kind)
}

func TestSchemaErrorFormatsWithoutPath(t *testing.T) {
	err := NewSchemaError(SchemaTooLarge, "", "", "schema requires %d bits, exceeds 64", 70)
	require.Equal(t, "schema requires 70 bits, exceeds 64", err.Error())
}

func TestEncodingErrorFormatsWithField(t *testing.T) {
	err := NewEncodingError(OutOfRange, "age", "200", "value %s is outside [0, 130]", "200")
	require.Equal(t, `field "age": value 200 is outside [0, 130]`, err.Error())
}

func TestEncodingErrorFormatsWithoutField(t *testing.T) {
	err := NewEncodingError(MissingField, "", "", "missing required fields: %s", "age, role")
	require.Equal(t, "missing required fields: age, role", err.Error())
}

func TestEncodingErrorClipsEchoedValue(t *testing.T) {
	long := strings.Repeat("x", maxEchoLen+10)
	err := NewEncodingError(TypeMismatch, "blob", long, "unexpected value")
	require.True(t, strings.HasSuffix(err.Value, "...(truncated)"))
}

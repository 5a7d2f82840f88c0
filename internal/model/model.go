// Package model defines the BitSchema field/schema type system: a
// closed tagged union of field variants (§3 of the spec) plus the
// validation that turns a raw, untrusted document into a Schema safe
// for the layout planner to consume.
package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bitschema/bitschema/internal/bitwidth"
	"github.com/bitschema/bitschema/internal/bserr"
	"github.com/bitschema/bitschema/internal/schemaio"
)

// Kind selects which of Field's variant-specific pointers is meaningful.
type Kind string

const (
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
	KindEnum    Kind = "enum"
	KindDate    Kind = "date"
	KindBitmask Kind = "bitmask"
)

// Resolution is the time granularity of a Date field.
type Resolution string

const (
	ResolutionDay    Resolution = "day"
	ResolutionHour   Resolution = "hour"
	ResolutionMinute Resolution = "minute"
	ResolutionSecond Resolution = "second"
)

// IntField is the Integer variant's attributes.
type IntField struct {
	Min    int64
	Max    int64
	Signed bool
}

// EnumField is the Enum variant's attributes.
type EnumField struct {
	Values []string
}

// DateField is the Date variant's attributes.
type DateField struct {
	Resolution Resolution
	MinDate    time.Time
	MaxDate    time.Time
}

// BitmaskField is the Bitmask variant's attributes: an ordered set of
// flag names mapped to bit positions. Flags is kept ordered (rather
// than a bare map) so emitted code and rendered output are
// deterministic across runs, mirroring the "never rely on hash-map
// iteration order" rule for the schema's own field list.
type BitmaskField struct {
	Flags    []string
	Position map[string]int
}

// Field is a tagged variant; Kind selects which pointer is populated.
// Every variant additionally carries Nullable.
type Field struct {
	Kind     Kind
	Nullable bool

	Int     *IntField
	Enum    *EnumField
	Date    *DateField
	Bitmask *BitmaskField
}

// NamedField pairs a field with its declared name, preserving the
// position it appears at in the schema document.
type NamedField struct {
	Name  string
	Field Field
}

// Schema is a validated schema, immutable once returned from
// Validate. Fields is the ordered field list; Index is a name → slice
// position side table so lookups don't require a linear scan.
type Schema struct {
	Name    string
	Version string
	Fields  []NamedField
	Index   map[string]int
}

// Field looks up a field by name, returning (field, true) if present.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.Index[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i].Field, true
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIdentifier reports whether s satisfies the conservative
// cross-host-language identifier rule from §3 invariant 1.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Validate turns a raw, already-parsed schema document into a Schema,
// rejecting anything §4.1 lists as malformed. The returned Schema is
// safe to hand to the layout planner and share across goroutines.
func Validate(raw schemaio.RawSchema) (*Schema, error) {
	if !IsValidIdentifier(raw.Name) {
		return nil, bserr.NewSchemaError(bserr.InvalidIdentifier, "name", raw.Name,
			"schema name %q is not a valid identifier", raw.Name)
	}

	if len(raw.Fields) == 0 {
		return nil, bserr.NewSchemaError(bserr.MissingAttribute, "fields", "",
			"schema must declare at least one field")
	}

	fields := make([]NamedField, 0, len(raw.Fields))
	index := make(map[string]int, len(raw.Fields))

	for _, rf := range raw.Fields {
		name := rf.Name
		path := fmt.Sprintf("fields.%s", name)

		if !IsValidIdentifier(name) {
			return nil, bserr.NewSchemaError(bserr.InvalidIdentifier, path, name,
				"field name %q is not a valid identifier", name)
		}
		if _, dup := index[name]; dup {
			return nil, bserr.NewSchemaError(bserr.DuplicateFieldName, path, name,
				"field name %q is declared more than once", name)
		}

		field, err := validateField(path, rf)
		if err != nil {
			return nil, err
		}

		index[name] = len(fields)
		fields = append(fields, NamedField{Name: name, Field: *field})
	}

	return &Schema{
		Name:    raw.Name,
		Version: raw.Version,
		Fields:  fields,
		Index:   index,
	}, nil
}

func validateField(path string, rf schemaio.RawField) (*Field, error) {
	switch rf.Type {
	case "bool":
		return &Field{Kind: KindBool, Nullable: rf.Nullable}, nil
	case "int":
		return validateIntField(path, rf)
	case "enum":
		return validateEnumField(path, rf)
	case "date":
		return validateDateField(path, rf)
	case "bitmask":
		return validateBitmaskField(path, rf)
	case "":
		return nil, bserr.NewSchemaError(bserr.MissingAttribute, path, "",
			`field is missing a "type" attribute`)
	default:
		return nil, bserr.NewSchemaError(bserr.UnknownVariant, path, rf.Type,
			"unknown field type %q", rf.Type)
	}
}

func validateIntField(path string, rf schemaio.RawField) (*Field, error) {
	if rf.Min == nil || rf.Max == nil {
		return nil, bserr.NewSchemaError(bserr.MissingAttribute, path, "",
			`int field requires both "min" and "max"`)
	}
	min, max := *rf.Min, *rf.Max

	if min > max {
		return nil, bserr.NewSchemaError(bserr.IntegerRangeInverted, path+".min",
			fmt.Sprintf("min=%d max=%d", min, max), "min must be <= max")
	}

	// Fast-fail before planning: a single field's own width (plus its
	// presence bit if nullable) can't exceed 64 bits. Subtract as
	// uint64 rather than int64: max-min can reach 2^64-1 (e.g.
	// min=MinInt64, max=MaxInt64), which overflows int64 itself.
	width := bitwidth.Length(uint64(max) - uint64(min))
	total := width
	if rf.Nullable {
		total++
	}
	if total > 64 {
		return nil, bserr.NewSchemaError(bserr.IntegerRangeOverflow, path,
			fmt.Sprintf("min=%d max=%d", min, max),
			"range requires %d bits, which already exceeds 64", total)
	}

	return &Field{
		Kind:     KindInt,
		Nullable: rf.Nullable,
		Int:      &IntField{Min: min, Max: max, Signed: rf.Signed},
	}, nil
}

func validateEnumField(path string, rf schemaio.RawField) (*Field, error) {
	if len(rf.Values) == 0 {
		return nil, bserr.NewSchemaError(bserr.EnumEmpty, path, "",
			"enum must have at least one value")
	}
	if len(rf.Values) > 255 {
		return nil, bserr.NewSchemaError(bserr.EnumTooLarge, path,
			fmt.Sprintf("%d", len(rf.Values)), "enum has %d values, max is 255", len(rf.Values))
	}

	seen := make(map[string]bool, len(rf.Values))
	for _, v := range rf.Values {
		if v == "" {
			return nil, bserr.NewSchemaError(bserr.EnumValueEmpty, path, v,
				"enum values must be non-empty")
		}
		if seen[v] {
			return nil, bserr.NewSchemaError(bserr.EnumDuplicate, path, v,
				"enum value %q is declared more than once", v)
		}
		seen[v] = true
	}

	return &Field{
		Kind:     KindEnum,
		Nullable: rf.Nullable,
		Enum:     &EnumField{Values: append([]string(nil), rf.Values...)},
	}, nil
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseISODate parses an ISO 8601 date or date-time string, trying
// progressively richer layouts. It never uses locale-dependent or
// floating-point parsing.
func ParseISODate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func validateDateField(path string, rf schemaio.RawField) (*Field, error) {
	switch rf.Resolution {
	case "day", "hour", "minute", "second":
	case "":
		return nil, bserr.NewSchemaError(bserr.MissingAttribute, path, "",
			`date field requires a "resolution"`)
	default:
		return nil, bserr.NewSchemaError(bserr.UnknownVariant, path+".resolution", rf.Resolution,
			"unknown date resolution %q", rf.Resolution)
	}

	if rf.MinDate == "" || rf.MaxDate == "" {
		return nil, bserr.NewSchemaError(bserr.MissingAttribute, path, "",
			`date field requires both "min_date" and "max_date"`)
	}

	minDate, err := ParseISODate(rf.MinDate)
	if err != nil {
		return nil, bserr.NewSchemaError(bserr.DateParseError, path+".min_date", rf.MinDate,
			"invalid ISO 8601 date: %v", err)
	}
	maxDate, err := ParseISODate(rf.MaxDate)
	if err != nil {
		return nil, bserr.NewSchemaError(bserr.DateParseError, path+".max_date", rf.MaxDate,
			"invalid ISO 8601 date: %v", err)
	}

	if !minDate.Before(maxDate) {
		return nil, bserr.NewSchemaError(bserr.DateRangeInverted, path,
			fmt.Sprintf("min_date=%s max_date=%s", rf.MinDate, rf.MaxDate),
			"min_date must be strictly before max_date")
	}

	units := unitsInRange(Resolution(rf.Resolution), minDate, maxDate)
	width := bitwidth.Length(uint64(units))
	total := width
	if rf.Nullable {
		total++
	}
	if total > 64 {
		return nil, bserr.NewSchemaError(bserr.SchemaTooLarge, path,
			fmt.Sprintf("%d units", units),
			"date range requires %d bits, which already exceeds 64", total)
	}

	return &Field{
		Kind:     KindDate,
		Nullable: rf.Nullable,
		Date: &DateField{
			Resolution: Resolution(rf.Resolution),
			MinDate:    minDate,
			MaxDate:    maxDate,
		},
	}, nil
}

// unitsInRange returns the number of whole resolution ticks from
// minDate to maxDate: one less than the inclusive tick count, i.e. the
// highest value a field of this range normalizes to.
func unitsInRange(res Resolution, minDate, maxDate time.Time) int64 {
	d := maxDate.Sub(minDate)
	switch res {
	case ResolutionDay:
		return int64(d.Hours() / 24)
	case ResolutionHour:
		return int64(d.Hours())
	case ResolutionMinute:
		return int64(d.Minutes())
	case ResolutionSecond:
		return int64(d.Seconds())
	default:
		return 0
	}
}

func validateBitmaskField(path string, rf schemaio.RawField) (*Field, error) {
	if len(rf.Flags) == 0 {
		return nil, bserr.NewSchemaError(bserr.BitmaskEmpty, path, "",
			"bitmask must declare at least one flag")
	}

	flags := make([]string, 0, len(rf.Flags))
	position := make(map[string]int, len(rf.Flags))
	seenPos := make(map[int]string, len(rf.Flags))
	maxPos := 0

	for _, f := range rf.Flags {
		if !IsValidIdentifier(f.Name) {
			return nil, bserr.NewSchemaError(bserr.InvalidIdentifier, path+".flags", f.Name,
				"flag name %q is not a valid identifier", f.Name)
		}
		if f.Position < 0 || f.Position > 63 {
			return nil, bserr.NewSchemaError(bserr.BitmaskPositionOutOfRange, path+".flags."+f.Name,
				fmt.Sprintf("%d", f.Position), "flag position %d is out of range [0, 63]", f.Position)
		}
		if prior, dup := seenPos[f.Position]; dup {
			return nil, bserr.NewSchemaError(bserr.BitmaskPositionDuplicate, path+".flags."+f.Name,
				fmt.Sprintf("%d", f.Position), "position %d is already used by flag %q", f.Position, prior)
		}

		seenPos[f.Position] = f.Name
		flags = append(flags, f.Name)
		position[f.Name] = f.Position
		if f.Position > maxPos {
			maxPos = f.Position
		}
	}

	width := maxPos + 1
	total := width
	if rf.Nullable {
		total++
	}
	if total > 64 {
		return nil, bserr.NewSchemaError(bserr.SchemaTooLarge, path,
			fmt.Sprintf("%d", width),
			"bitmask requires %d bits, which already exceeds 64", total)
	}

	return &Field{
		Kind:     KindBitmask,
		Nullable: rf.Nullable,
		Bitmask:  &BitmaskField{Flags: flags, Position: position},
	}, nil
}

// Package layout computes the deterministic bit assignment for a
// validated schema's fields (§4.2 of the spec): the planner. It is
// pure — the same Schema always yields the same FieldLayout sequence
// — and produces immutable values safe to share across goroutines.
package layout

import (
	"fmt"
	"strings"

	"github.com/bitschema/bitschema/internal/bitwidth"
	"github.com/bitschema/bitschema/internal/bserr"
	"github.com/bitschema/bitschema/internal/model"
)

// FieldLayout is the planner's per-field output: name, variant tag,
// bit offset (LSB position within the word), bit width (including the
// presence bit when nullable), nullability, and a copy of the
// variant-specific constraints the codec and emitters need.
type FieldLayout struct {
	Name     string
	Kind     model.Kind
	Offset   uint8
	Bits     uint8
	Nullable bool

	Int     *model.IntField
	Enum    *model.EnumField
	Date    *model.DateField
	Bitmask *model.BitmaskField
}

// ValueBits is the number of bits used to hold the field's value,
// excluding the presence bit (same as Bits when not nullable).
func (l FieldLayout) ValueBits() uint8 {
	if l.Nullable {
		return l.Bits - 1
	}
	return l.Bits
}

// ValueOffset is the LSB position of the field's value bits: the same
// as Offset when not nullable, one past it when nullable (the
// presence bit occupies Offset itself).
func (l FieldLayout) ValueOffset() uint8 {
	if l.Nullable {
		return l.Offset + 1
	}
	return l.Offset
}

// Plan computes the ordered, non-overlapping bit layout for s's
// fields in declaration order, LSB-first, with no padding and no
// reordering. It fails with a SchemaTooLarge error if the cumulative
// width exceeds 64 bits.
func Plan(s *model.Schema) ([]FieldLayout, int, error) {
	layouts := make([]FieldLayout, 0, len(s.Fields))
	offset := uint8(0)
	total := 0

	for _, nf := range s.Fields {
		bits := fieldBits(nf.Field)
		if nf.Field.Nullable {
			bits++
		}

		if int(offset)+int(bits) > 64 {
			return nil, 0, tooLargeError(s, layouts, nf.Name, bits)
		}

		layouts = append(layouts, FieldLayout{
			Name:     nf.Name,
			Kind:     nf.Field.Kind,
			Offset:   offset,
			Bits:     bits,
			Nullable: nf.Field.Nullable,
			Int:      nf.Field.Int,
			Enum:     nf.Field.Enum,
			Date:     nf.Field.Date,
			Bitmask:  nf.Field.Bitmask,
		})

		offset += bits
		total += int(bits)
	}

	return layouts, total, nil
}

// fieldBits computes the bits needed before the presence bit, per the
// table in §4.2.
func fieldBits(f model.Field) uint8 {
	switch f.Kind {
	case model.KindBool:
		return 1
	case model.KindInt:
		// uint64 subtraction, not int64: the span can reach 2^64-1.
		return bitwidth.Length(uint64(f.Int.Max) - uint64(f.Int.Min))
	case model.KindEnum:
		return bitwidth.Length(uint64(len(f.Enum.Values) - 1))
	case model.KindDate:
		units := unitsInRange(f.Date)
		return bitwidth.Length(uint64(units))
	case model.KindBitmask:
		max := 0
		for _, pos := range f.Bitmask.Position {
			if pos > max {
				max = pos
			}
		}
		return uint8(max + 1)
	default:
		panic(fmt.Sprintf("layout: unreachable field kind %q", f.Kind))
	}
}

func unitsInRange(d *model.DateField) int64 {
	delta := d.MaxDate.Sub(d.MinDate)
	switch d.Resolution {
	case model.ResolutionDay:
		return int64(delta.Hours() / 24)
	case model.ResolutionHour:
		return int64(delta.Hours())
	case model.ResolutionMinute:
		return int64(delta.Minutes())
	case model.ResolutionSecond:
		return int64(delta.Seconds())
	default:
		panic(fmt.Sprintf("layout: unreachable date resolution %q", d.Resolution))
	}
}

func tooLargeError(s *model.Schema, soFar []FieldLayout, overflowing string, overflowingBits uint8) error {
	parts := make([]string, 0, len(soFar)+1)
	total := 0
	for _, l := range soFar {
		parts = append(parts, fmt.Sprintf("%s=%d", l.Name, l.Bits))
		total += int(l.Bits)
	}
	parts = append(parts, fmt.Sprintf("%s=%d", overflowing, overflowingBits))
	total += int(overflowingBits)

	return bserr.NewSchemaError(bserr.SchemaTooLarge, "fields", fmt.Sprintf("%d", total),
		"schema exceeds 64-bit limit: %d bits total. breakdown: %s", total, strings.Join(parts, ", "))
}

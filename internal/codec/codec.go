// Package codec implements the bidirectional translation between a
// record (field name → value) and a packed uint64 word, per §4.3 and
// §4.4 of the spec. Encode validates before packing any bits; decode
// is total over the full uint64 space and cannot fail.
package codec

import (
	"fmt"
	"sort"
	"time"

	"github.com/bitschema/bitschema/internal/bserr"
	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
)

// Null is the distinguished sentinel a caller uses to mean "this
// nullable field has no value" in a record passed to Encode, and the
// value Decode produces for a nullable field whose presence bit is 0.
type Null struct{}

// Record is the field-name-keyed input to Encode / output of Decode.
type Record map[string]any

// Encode packs record into a uint64 according to layouts, validating
// every present field before any bit is written (§4.4): an invalid
// record never produces a word.
func Encode(record Record, layouts []layout.FieldLayout) (uint64, error) {
	if err := validateRecord(record, layouts); err != nil {
		return 0, err
	}

	var word uint64
	for _, l := range layouts {
		value, present := record[l.Name]

		if l.Nullable {
			if !present || isNull(value) {
				continue // presence bit and value bits stay 0
			}
			word |= 1 << l.Offset
		}

		v, err := normalize(value, l)
		if err != nil {
			return 0, err
		}

		mask := valueMask(l.ValueBits())
		word |= (v & mask) << l.ValueOffset()
	}

	return word, nil
}

// Decode unpacks word into a Record according to layouts. It never
// fails: every uint64 is a valid encoding of something, per §4.3's
// "decode is total" guarantee. Unused high bits (when the schema's
// total width is less than 64) are ignored.
func Decode(word uint64, layouts []layout.FieldLayout) Record {
	record := make(Record, len(layouts))

	for _, l := range layouts {
		if l.Nullable {
			presence := (word >> l.Offset) & 1
			if presence == 0 {
				record[l.Name] = Null{}
				continue
			}
		}

		mask := valueMask(l.ValueBits())
		extracted := (word >> l.ValueOffset()) & mask
		record[l.Name] = denormalize(extracted, l)
	}

	return record
}

func valueMask(bits uint8) uint64 {
	if bits == 0 {
		return 0
	}
	if bits == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// normalize converts a field's semantic value into the unsigned
// integer in [0, 2^value_bits) that occupies its value bits (§4.3's
// normalization table). Callers must have already validated value.
func normalize(value any, l layout.FieldLayout) (uint64, error) {
	switch l.Kind {
	case model.KindBool:
		b := value.(bool)
		if b {
			return 1, nil
		}
		return 0, nil

	case model.KindInt:
		n := value.(int64)
		return uint64(n - l.Int.Min), nil

	case model.KindEnum:
		s := value.(string)
		for i, v := range l.Enum.Values {
			if v == s {
				return uint64(i), nil
			}
		}
		return 0, bserr.NewEncodingError(bserr.UnknownEnumValue, l.Name, s,
			"value %q is not one of the declared enum values", s)

	case model.KindDate:
		t, err := asTime(value)
		if err != nil {
			return 0, bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"%v", err)
		}
		return uint64(dateUnits(l.Date.Resolution, l.Date.MinDate, t)), nil

	case model.KindBitmask:
		flags := value.(map[string]bool)
		var v uint64
		for name, pos := range l.Bitmask.Position {
			if flags[name] {
				v |= 1 << uint(pos)
			}
		}
		return v, nil

	default:
		panic(fmt.Sprintf("codec: unreachable field kind %q", l.Kind))
	}
}

// denormalize converts extracted value bits back into a semantic
// value (§4.3's denormalization rules). It never fails: every bit
// pattern maps to some value, even one past the field's declared
// range (an int above Max, a date after MaxDate); enum codes past the
// declared values wrap, as noted below.
func denormalize(extracted uint64, l layout.FieldLayout) any {
	switch l.Kind {
	case model.KindBool:
		return extracted != 0

	case model.KindInt:
		return l.Int.Min + int64(extracted)

	case model.KindEnum:
		// extracted ranges over the field's full bit width, which can
		// exceed len(Values) (e.g. 3 values need 2 bits, admitting 4
		// codes): wrap rather than index out of range, preserving
		// decode's totality over every uint64.
		return l.Enum.Values[extracted%uint64(len(l.Enum.Values))]

	case model.KindDate:
		return addDateUnits(l.Date.Resolution, l.Date.MinDate, int64(extracted))

	case model.KindBitmask:
		flags := make(map[string]bool, len(l.Bitmask.Flags))
		for _, name := range l.Bitmask.Flags {
			pos := l.Bitmask.Position[name]
			flags[name] = (extracted>>uint(pos))&1 == 1
		}
		return flags

	default:
		panic(fmt.Sprintf("codec: unreachable field kind %q", l.Kind))
	}
}

// asTime accepts a time.Time or an ISO 8601 string.
func asTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return model.ParseISODate(v)
	default:
		return time.Time{}, fmt.Errorf("expected a date/time value, got %T", value)
	}
}

// dateUnits truncates toward zero, per §4.3's normalization rule for
// sub-resolution-aligned inputs.
func dateUnits(res model.Resolution, minDate, value time.Time) int64 {
	d := value.Sub(minDate)
	switch res {
	case model.ResolutionDay:
		return int64(d.Hours() / 24)
	case model.ResolutionHour:
		return int64(d.Hours())
	case model.ResolutionMinute:
		return int64(d.Minutes())
	case model.ResolutionSecond:
		return int64(d.Seconds())
	default:
		panic(fmt.Sprintf("codec: unreachable date resolution %q", res))
	}
}

func addDateUnits(res model.Resolution, minDate time.Time, units int64) time.Time {
	switch res {
	case model.ResolutionDay:
		return minDate.AddDate(0, 0, int(units))
	case model.ResolutionHour:
		return minDate.Add(time.Duration(units) * time.Hour)
	case model.ResolutionMinute:
		return minDate.Add(time.Duration(units) * time.Minute)
	case model.ResolutionSecond:
		return minDate.Add(time.Duration(units) * time.Second)
	default:
		panic(fmt.Sprintf("codec: unreachable date resolution %q", res))
	}
}

// validateRecord checks that every non-nullable field's key is
// present, then validates every present field's value (§4.4).
func validateRecord(record Record, layouts []layout.FieldLayout) error {
	var missing []string
	for _, l := range layouts {
		if l.Nullable {
			continue
		}
		if _, ok := record[l.Name]; !ok {
			missing = append(missing, l.Name)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		if len(missing) == 1 {
			return bserr.NewEncodingError(bserr.MissingField, missing[0], "",
				"required field is missing")
		}
		return bserr.NewEncodingError(bserr.MissingField, "", fmt.Sprintf("%v", missing),
			"required fields missing: %v", missing)
	}

	for _, l := range layouts {
		value, present := record[l.Name]
		if !present {
			continue // nullable, absent: treated as null, already legal
		}
		if err := validateValue(value, l); err != nil {
			return err
		}
	}

	return nil
}

// validateValue validates a single present field value against its
// variant's constraints (§4.4), returning the first violation.
func validateValue(value any, l layout.FieldLayout) error {
	if isNull(value) {
		if !l.Nullable {
			return bserr.NewEncodingError(bserr.NullNotAllowed, l.Name, "",
				"field is not nullable")
		}
		return nil
	}

	switch l.Kind {
	case model.KindBool:
		if _, ok := value.(bool); !ok {
			return bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"expected a boolean, got %T", value)
		}

	case model.KindInt:
		n, ok := value.(int64)
		if !ok {
			return bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"expected an integer, got %T", value)
		}
		if n < l.Int.Min || n > l.Int.Max {
			return bserr.NewEncodingError(bserr.OutOfRange, l.Name, fmt.Sprintf("%d", n),
				"value %d is outside [%d, %d]", n, l.Int.Min, l.Int.Max)
		}

	case model.KindEnum:
		s, ok := value.(string)
		if !ok {
			return bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"expected a string, got %T", value)
		}
		found := false
		for _, v := range l.Enum.Values {
			if v == s {
				found = true
				break
			}
		}
		if !found {
			return bserr.NewEncodingError(bserr.UnknownEnumValue, l.Name, s,
				"value %q is not one of the declared enum values", s)
		}

	case model.KindDate:
		t, err := asTime(value)
		if err != nil {
			return bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"%v", err)
		}
		if t.Before(l.Date.MinDate) || t.After(l.Date.MaxDate) {
			return bserr.NewEncodingError(bserr.OutOfRange, l.Name, t.Format(time.RFC3339),
				"value is outside [%s, %s]",
				l.Date.MinDate.Format(time.RFC3339), l.Date.MaxDate.Format(time.RFC3339))
		}

	case model.KindBitmask:
		flags, ok := value.(map[string]bool)
		if !ok {
			return bserr.NewEncodingError(bserr.TypeMismatch, l.Name, fmt.Sprintf("%v", value),
				"expected a map[string]bool, got %T", value)
		}
		for name := range flags {
			if _, declared := l.Bitmask.Position[name]; !declared {
				return bserr.NewEncodingError(bserr.UnknownFlag, l.Name, name,
					"flag %q is not declared", name)
			}
		}

	default:
		panic(fmt.Sprintf("codec: unreachable field kind %q", l.Kind))
	}

	return nil
}

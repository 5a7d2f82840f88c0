// Package jsonschema emits a JSON Schema Draft 2020-12 document
// describing a BitSchema's record shape (§4.5.1 of the spec) — not
// the packed bits, which the renderer (internal/render) covers
// instead.
package jsonschema

import (
	"fmt"

	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
)

const draft = "https://json-schema.org/draft/2020-12/schema"

// Generate builds the JSON Schema object for s, using layouts to
// populate the x-bitschema-* vendor extensions (total bit count and
// per-field offset/width) that make a round trip back to a schema
// possible in principle.
func Generate(s *model.Schema, layouts []layout.FieldLayout) map[string]any {
	total := 0
	for _, l := range layouts {
		total += int(l.Bits)
	}

	properties := make(map[string]any, len(layouts))
	required := make([]string, 0, len(layouts))

	byName := make(map[string]layout.FieldLayout, len(layouts))
	for _, l := range layouts {
		byName[l.Name] = l
	}

	for _, nf := range s.Fields {
		l := byName[nf.Name]
		properties[nf.Name] = fieldSchema(nf.Field, l)
		if !nf.Field.Nullable {
			required = append(required, nf.Name)
		}
	}

	return map[string]any{
		"$schema":                draft,
		"$id":                    fmt.Sprintf("https://bitschema.example/schemas/%s.schema.json", s.Name),
		"type":                   "object",
		"title":                  s.Name,
		"properties":             properties,
		"required":               required,
		"additionalProperties":   false,
		"x-bitschema-version":    s.Version,
		"x-bitschema-total-bits": total,
	}
}

func fieldSchema(f model.Field, l layout.FieldLayout) map[string]any {
	var sch map[string]any

	switch f.Kind {
	case model.KindBool:
		sch = map[string]any{"type": jsonType(f.Nullable, "boolean")}

	case model.KindInt:
		sch = map[string]any{
			"type":    jsonType(f.Nullable, "integer"),
			"minimum": f.Int.Min,
			"maximum": f.Int.Max,
		}

	case model.KindEnum:
		sch = map[string]any{
			"type": jsonType(f.Nullable, "string"),
			"enum": append([]string(nil), f.Enum.Values...),
		}

	case model.KindDate:
		format := "date-time"
		if f.Date.Resolution == model.ResolutionDay {
			format = "date"
		}
		sch = map[string]any{
			"type":                   jsonType(f.Nullable, "string"),
			"format":                 format,
			"x-bitschema-resolution": string(f.Date.Resolution),
			"x-bitschema-min-date":   f.Date.MinDate.Format("2006-01-02T15:04:05Z"),
			"x-bitschema-max-date":   f.Date.MaxDate.Format("2006-01-02T15:04:05Z"),
		}

	case model.KindBitmask:
		flagProps := make(map[string]any, len(f.Bitmask.Flags))
		positions := make(map[string]int, len(f.Bitmask.Flags))
		for _, name := range f.Bitmask.Flags {
			flagProps[name] = map[string]any{"type": "boolean"}
			positions[name] = f.Bitmask.Position[name]
		}
		sch = map[string]any{
			"type":                  jsonType(f.Nullable, "object"),
			"properties":            flagProps,
			"additionalProperties":  false,
			"x-bitschema-positions": positions,
		}

	default:
		panic(fmt.Sprintf("jsonschema: unreachable field kind %q", f.Kind))
	}

	sch["x-bitschema-offset"] = int(l.Offset)
	sch["x-bitschema-bits"] = int(l.Bits)

	return sch
}

// jsonType returns base, or a two-element ["base", "null"] array when
// nullable — §4.5.1's rule for how nullability surfaces in the
// emitted type.
func jsonType(nullable bool, base string) any {
	if nullable {
		return []string{base, "null"}
	}
	return base
}

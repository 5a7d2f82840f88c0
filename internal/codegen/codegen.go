// Package codegen emits a native Go accessor type for a schema (§4.5.3
// of the spec): a struct with one typed field per schema field, an
// Encode() uint64 method, and a Decode<Type>(word uint64) constructor whose
// behavior is bit-identical to internal/codec's runtime Encode/Decode.
//
// The emitter never calls back into internal/codec: per §9's design
// note, it re-expresses the normalization, masking, and presence-bit
// arithmetic inline, with every field's offset, mask, and
// variant-specific constant baked in at generation time. This is why
// the package exists at all — the equivalence between emitted and
// runtime code is a property the test suite proves, not a dependency
// the generated code carries.
package codegen

import (
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"strings"
	"time"

	"github.com/dave/jennifer/jen"

	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
)

// Generate emits Go source for s's accessor type, built from layouts.
// The source is parsed with go/parser before being returned; a
// generation bug that produces invalid Go is reported as an error
// rather than handed to the caller.
func Generate(s *model.Schema, layouts []layout.FieldLayout, pkg string) (string, error) {
	typeName := exportName(s.Name)

	f := jen.NewFile(pkg)
	f.HeaderComment(fmt.Sprintf("Code generated from the %q schema. DO NOT EDIT.", s.Name))

	genStruct(f, typeName, s, layouts)
	genEncode(f, typeName, layouts)
	genDecode(f, typeName, layouts)

	src := f.GoString()

	if _, err := parser.ParseFile(token.NewFileSet(), typeName+".go", src, parser.AllErrors); err != nil {
		return "", fmt.Errorf("generated code for schema %q failed to parse: %w", s.Name, err)
	}

	formatted, err := format.Source([]byte(src))
	if err != nil {
		return "", fmt.Errorf("generated code for schema %q failed to format: %w", s.Name, err)
	}

	return string(formatted), nil
}

func genStruct(f *jen.File, typeName string, s *model.Schema, layouts []layout.FieldLayout) {
	byName := make(map[string]layout.FieldLayout, len(layouts))
	for _, l := range layouts {
		byName[l.Name] = l
	}

	fieldDefs := make([]jen.Code, 0, len(s.Fields))
	for _, nf := range s.Fields {
		l := byName[nf.Name]
		fieldDefs = append(fieldDefs, jen.Id(exportName(nf.Name)).Add(goType(l)))
	}

	f.Commentf("%s is the generated accessor type for the %q schema.", typeName, s.Name)
	f.Type().Id(typeName).Struct(fieldDefs...)
	f.Line()
}

// goType returns the jennifer type expression for a field's struct
// member: the variant's natural Go type, made a pointer when nullable
// so the zero value is distinguishable from "present, zero".
func goType(l layout.FieldLayout) *jen.Statement {
	var base *jen.Statement

	switch l.Kind {
	case model.KindBool:
		base = jen.Bool()
	case model.KindInt:
		base = jen.Int64()
	case model.KindEnum:
		base = jen.String()
	case model.KindDate:
		base = jen.Qual("time", "Time")
	case model.KindBitmask:
		base = jen.Map(jen.String()).Bool()
	default:
		panic(fmt.Sprintf("codegen: unreachable field kind %q", l.Kind))
	}

	if l.Nullable {
		return jen.Op("*").Add(base)
	}
	return base
}

func genEncode(f *jen.File, typeName string, layouts []layout.FieldLayout) {
	f.Commentf("Encode packs r into a uint64, bit-identical to the runtime codec's Encode.")
	f.Func().Params(jen.Id("r").Id(typeName)).Id("Encode").Params().Uint64().BlockFunc(func(g *jen.Group) {
		g.Var().Id("word").Uint64()
		g.Line()
		for _, l := range layouts {
			genEncodeField(g, l)
		}
		g.Return(jen.Id("word"))
	})
	f.Line()
}

func mask(bits uint8) uint64 {
	if bits == 0 {
		return 0
	}
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// genEncodeField emits one field's contribution to word, wrapped in
// its own block so the per-variant scratch variables (v, d) used
// across sibling fields never collide.
func genEncodeField(g *jen.Group, l layout.FieldLayout) {
	goName := exportName(l.Name)
	field := jen.Id("r").Dot(goName)

	g.BlockFunc(func(bg *jen.Group) {
		if l.Nullable {
			bg.If(field.Clone().Op("!=").Nil()).BlockFunc(func(ig *jen.Group) {
				ig.Id("word").Op("|=").Lit(uint64(1)).Op("<<").Lit(l.Offset)
				genEncodeValue(ig, l, jen.Parens(jen.Op("*").Add(field.Clone())))
			})
		} else {
			genEncodeValue(bg, l, field.Clone())
		}
	})
	g.Line()
}

// genEncodeValue packs valueExpr's normalized bits into word at
// l.ValueOffset(), masked to l.ValueBits().
func genEncodeValue(g *jen.Group, l layout.FieldLayout, valueExpr *jen.Statement) {
	m := mask(l.ValueBits())
	off := l.ValueOffset()

	switch l.Kind {
	case model.KindBool:
		g.If(valueExpr).Block(
			jen.Id("word").Op("|=").Lit(uint64(1)).Op("<<").Lit(off),
		)

	case model.KindInt:
		g.Id("v").Op(":=").Uint64().Parens(valueExpr.Clone().Op("-").Lit(l.Int.Min))
		g.Id("word").Op("|=").Parens(jen.Id("v").Op("&").Lit(m)).Op("<<").Lit(off)

	case model.KindEnum:
		g.Var().Id("v").Uint64()
		g.Switch(valueExpr).BlockFunc(func(sg *jen.Group) {
			for i, val := range l.Enum.Values {
				sg.Case(jen.Lit(val)).Block(jen.Id("v").Op("=").Lit(uint64(i)))
			}
		})
		g.Id("word").Op("|=").Parens(jen.Id("v").Op("&").Lit(m)).Op("<<").Lit(off)

	case model.KindDate:
		genDateNormalize(g, l, valueExpr)
		g.Id("word").Op("|=").Parens(jen.Id("v").Op("&").Lit(m)).Op("<<").Lit(off)

	case model.KindBitmask:
		g.Var().Id("v").Uint64()
		for _, name := range l.Bitmask.Flags {
			pos := l.Bitmask.Position[name]
			g.If(valueExpr.Clone().Index(jen.Lit(name))).Block(
				jen.Id("v").Op("|=").Lit(uint64(1)).Op("<<").Lit(uint(pos)),
			)
		}
		g.Id("word").Op("|=").Parens(jen.Id("v").Op("&").Lit(m)).Op("<<").Lit(off)

	default:
		panic(fmt.Sprintf("codegen: unreachable field kind %q", l.Kind))
	}
}

// genDateNormalize emits `d := valueExpr.Sub(minDateLit); v := uint64(...)`
// per the resolution, truncating toward zero exactly as
// internal/codec.dateUnits does.
func genDateNormalize(g *jen.Group, l layout.FieldLayout, valueExpr *jen.Statement) {
	g.Id("d").Op(":=").Add(valueExpr).Dot("Sub").Call(dateConstructor(l.Date.MinDate))

	switch l.Date.Resolution {
	case model.ResolutionDay:
		g.Id("v").Op(":=").Uint64().Parens(jen.Id("d").Dot("Hours").Call().Op("/").Lit(24))
	case model.ResolutionHour:
		g.Id("v").Op(":=").Uint64().Parens(jen.Id("d").Dot("Hours").Call())
	case model.ResolutionMinute:
		g.Id("v").Op(":=").Uint64().Parens(jen.Id("d").Dot("Minutes").Call())
	case model.ResolutionSecond:
		g.Id("v").Op(":=").Uint64().Parens(jen.Id("d").Dot("Seconds").Call())
	default:
		panic(fmt.Sprintf("codegen: unreachable date resolution %q", l.Date.Resolution))
	}
}

// dateConstructor builds a time.Date(...) expression reproducing t as
// a UTC constant, for baking a field's MinDate into generated source.
func dateConstructor(t time.Time) *jen.Statement {
	t = t.UTC()
	return jen.Qual("time", "Date").Call(
		jen.Lit(t.Year()),
		jen.Qual("time", "Month").Call(jen.Lit(int(t.Month()))),
		jen.Lit(t.Day()),
		jen.Lit(t.Hour()),
		jen.Lit(t.Minute()),
		jen.Lit(t.Second()),
		jen.Lit(t.Nanosecond()),
		jen.Qual("time", "UTC"),
	)
}

func genDecode(f *jen.File, typeName string, layouts []layout.FieldLayout) {
	f.Commentf("Decode%s reconstructs a %s from word, bit-identical to the runtime codec's Decode.", typeName, typeName)
	f.Func().Id("Decode"+typeName).Params(jen.Id("word").Uint64()).Id(typeName).BlockFunc(func(g *jen.Group) {
		g.Var().Id("out").Id(typeName)
		g.Line()
		for _, l := range layouts {
			genDecodeField(g, l)
		}
		g.Return(jen.Id("out"))
	})
	f.Line()
}

// genDecodeField emits one field's reconstruction from word, wrapped
// in its own block for the same reason genEncodeField is.
func genDecodeField(g *jen.Group, l layout.FieldLayout) {
	goName := exportName(l.Name)
	m := mask(l.ValueBits())
	off := l.ValueOffset()

	g.BlockFunc(func(bg *jen.Group) {
		if !l.Nullable {
			bg.Id("v").Op(":=").Parens(jen.Id("word").Op(">>").Lit(off)).Op("&").Lit(m)
			genDecodeAssign(bg, l, jen.Id("out").Dot(goName))
			return
		}

		bg.If(jen.Parens(jen.Id("word").Op(">>").Lit(l.Offset)).Op("&").Lit(uint64(1)).Op("==").Lit(1)).BlockFunc(func(ig *jen.Group) {
			ig.Id("v").Op(":=").Parens(jen.Id("word").Op(">>").Lit(off)).Op("&").Lit(m)
			ig.Var().Id("value").Add(goType(layout.FieldLayout{Kind: l.Kind}))
			genDecodeAssign(ig, l, jen.Id("value"))
			ig.Id("out").Dot(goName).Op("=").Op("&").Id("value")
		})
	})
	g.Line()
}

// genDecodeAssign assigns a field's denormalized value to lhs (a bare
// target expression, no trailing "="), reading the extracted bits
// from the local "v" declared by the caller.
func genDecodeAssign(g *jen.Group, l layout.FieldLayout, lhs *jen.Statement) {
	switch l.Kind {
	case model.KindBool:
		g.Add(lhs).Op("=").Id("v").Op("==").Lit(1)

	case model.KindInt:
		g.Add(lhs).Op("=").Lit(l.Int.Min).Op("+").Int64().Call(jen.Id("v"))

	case model.KindEnum:
		// v ranges over the field's full bit width, which can exceed
		// len(Values); wrap rather than index out of range so Decode
		// stays total, matching internal/codec's denormalize.
		values := jen.Index().String().ValuesFunc(func(vg *jen.Group) {
			for _, val := range l.Enum.Values {
				vg.Lit(val)
			}
		})
		g.Add(lhs).Op("=").Add(values).Index(jen.Id("v").Op("%").Lit(uint64(len(l.Enum.Values))))

	case model.KindDate:
		g.Add(lhs).Op("=").Add(dateAddExpr(l, jen.Id("v")))

	case model.KindBitmask:
		g.Add(lhs).Op("=").Make(jen.Map(jen.String()).Bool(), jen.Lit(len(l.Bitmask.Flags)))
		for _, name := range l.Bitmask.Flags {
			pos := l.Bitmask.Position[name]
			g.Add(lhs.Clone()).Index(jen.Lit(name)).Op("=").Parens(jen.Id("v").Op(">>").Lit(uint(pos))).Op("&").Lit(1).Op("==").Lit(1)
		}

	default:
		panic(fmt.Sprintf("codegen: unreachable field kind %q", l.Kind))
	}
}

// dateAddExpr builds minDate.Add…/AddDate(...) matching
// internal/codec.addDateUnits for the field's resolution.
func dateAddExpr(l layout.FieldLayout, units jen.Code) *jen.Statement {
	switch l.Date.Resolution {
	case model.ResolutionDay:
		return dateConstructor(l.Date.MinDate).Dot("AddDate").Call(jen.Lit(0), jen.Lit(0), jen.Int().Call(units))
	case model.ResolutionHour:
		return dateConstructor(l.Date.MinDate).Dot("Add").Call(jen.Qual("time", "Duration").Call(units).Op("*").Qual("time", "Hour"))
	case model.ResolutionMinute:
		return dateConstructor(l.Date.MinDate).Dot("Add").Call(jen.Qual("time", "Duration").Call(units).Op("*").Qual("time", "Minute"))
	case model.ResolutionSecond:
		return dateConstructor(l.Date.MinDate).Dot("Add").Call(jen.Qual("time", "Duration").Call(units).Op("*").Qual("time", "Second"))
	default:
		panic(fmt.Sprintf("codegen: unreachable date resolution %q", l.Date.Resolution))
	}
}

// exportName converts a snake_case schema/field identifier into an
// exported Go identifier: "user_profile" -> "UserProfile".
func exportName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

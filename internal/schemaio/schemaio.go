// Package schemaio loads schema documents from the serialization
// formats the CLI accepts (JSON, YAML, TOML) into RawSchema, the
// untrusted intermediate value internal/model.Validate consumes. Per
// §1 of the spec these loaders are thin wrappers, external
// collaborators to the core: they have no validation logic of their
// own beyond what the underlying decoder enforces.
package schemaio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RawField is the untrusted, format-agnostic shape of one field
// entry under a schema document's "fields" mapping.
type RawField struct {
	Name     string `yaml:"-" json:"-" toml:"-"`
	Type     string `yaml:"type" json:"type" toml:"type"`
	Nullable bool   `yaml:"nullable" json:"nullable" toml:"nullable"`

	// Integer
	Min    *int64 `yaml:"min,omitempty" json:"min,omitempty" toml:"min,omitempty"`
	Max    *int64 `yaml:"max,omitempty" json:"max,omitempty" toml:"max,omitempty"`
	Signed bool   `yaml:"signed,omitempty" json:"signed,omitempty" toml:"signed,omitempty"`

	// Enum
	Values []string `yaml:"values,omitempty" json:"values,omitempty" toml:"values,omitempty"`

	// Date
	Resolution string `yaml:"resolution,omitempty" json:"resolution,omitempty" toml:"resolution,omitempty"`
	MinDate    string `yaml:"min_date,omitempty" json:"min_date,omitempty" toml:"min_date,omitempty"`
	MaxDate    string `yaml:"max_date,omitempty" json:"max_date,omitempty" toml:"max_date,omitempty"`

	// Bitmask
	Flags []RawFlag `yaml:"-" json:"-" toml:"-"`
}

// RawFlag is one bitmask flag-name/position pair.
type RawFlag struct {
	Name     string
	Position int
}

// RawSchema is the untrusted, format-agnostic shape of a whole schema
// document (§6 of the spec).
type RawSchema struct {
	Version string
	Name    string
	Fields  []RawField
}

// yamlDoc/jsonDoc mirror the wire shape before Fields/Flags are
// flattened into RawSchema's ordered slices. yaml.v3 and encoding/json
// both preserve mapping-key declaration order when decoded into
// yaml.Node / a custom order-preserving type respectively; the
// structures below use yaml.Node for YAML (ordered) and a
// json.Decoder token stream for JSON (see readJSON) to satisfy §6's
// "ordered mapping... preserving declaration order" requirement.
type yamlDoc struct {
	Version string    `yaml:"version"`
	Name    string    `yaml:"name"`
	Fields  yaml.Node `yaml:"fields"`
}

// Read loads a schema document from path, dispatching on its
// extension (.json, .yaml/.yml, .toml).
func Read(path string, data []byte) (RawSchema, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return readJSON(data)
	case ".yaml", ".yml":
		return readYAML(data)
	case ".toml":
		return readTOML(data)
	default:
		return RawSchema{}, fmt.Errorf("unsupported schema file extension %q", ext)
	}
}

// jsonEnvelope captures the outer keys with json.RawMessage so
// "fields" can be walked token-by-token afterward to recover
// declaration order (encoding/json's map decoding does not preserve
// it, and RawSchema's contract requires it per §6).
type jsonEnvelope struct {
	Version string          `json:"version"`
	Name    string          `json:"name"`
	Fields  json.RawMessage `json:"fields"`
}

func readJSON(data []byte) (RawSchema, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return RawSchema{}, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}

	fields, err := orderedJSONFields(env.Fields)
	if err != nil {
		return RawSchema{}, fmt.Errorf("failed to decode JSON schema fields: %w", err)
	}

	return RawSchema{Version: env.Version, Name: env.Name, Fields: fields}, nil
}

// orderedJSONFields walks the "fields" object's tokens to recover key
// order, then unmarshals each value independently.
func orderedJSONFields(raw json.RawMessage) ([]RawField, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	names, values, err := orderedObjectEntries(raw)
	if err != nil {
		return nil, err
	}

	fields := make([]RawField, 0, len(names))
	for i, name := range names {
		var rf RawField
		if err := json.Unmarshal(values[i], &rf); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		rf.Name = name

		if rf.Type == "bitmask" {
			flagNames, flagValues, err := orderedFlagsEntries(values[i])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			rf.Flags = make([]RawFlag, 0, len(flagNames))
			for j, flagName := range flagNames {
				var pos int
				if err := json.Unmarshal(flagValues[j], &pos); err != nil {
					return nil, fmt.Errorf("field %q flag %q: %w", name, flagName, err)
				}
				rf.Flags = append(rf.Flags, RawFlag{Name: flagName, Position: pos})
			}
		}

		fields = append(fields, rf)
	}

	return fields, nil
}

func orderedFlagsEntries(fieldRaw json.RawMessage) ([]string, []json.RawMessage, error) {
	var withFlags struct {
		Flags json.RawMessage `json:"flags"`
	}
	if err := json.Unmarshal(fieldRaw, &withFlags); err != nil {
		return nil, nil, err
	}
	if len(withFlags.Flags) == 0 {
		return nil, nil, nil
	}
	return orderedObjectEntries(withFlags.Flags)
}

// orderedObjectEntries decodes a JSON object's top-level keys and raw
// values in the order they appear in the source text.
func orderedObjectEntries(raw json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	var names []string
	var values []json.RawMessage

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected a string key")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}

		names = append(names, key)
		values = append(values, value)
	}

	return names, values, nil
}

func readYAML(data []byte) (RawSchema, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawSchema{}, fmt.Errorf("failed to unmarshal YAML schema: %w", err)
	}

	fields, err := fieldsFromYAMLNode(&doc.Fields)
	if err != nil {
		return RawSchema{}, fmt.Errorf("failed to decode YAML schema fields: %w", err)
	}

	return RawSchema{Version: doc.Version, Name: doc.Name, Fields: fields}, nil
}

// fieldsFromYAMLNode walks the raw mapping node for "fields" so field
// declaration order survives, then decodes each value node into a
// RawField and each bitmask "flags" mapping into ordered RawFlags.
func fieldsFromYAMLNode(node *yaml.Node) ([]RawField, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("\"fields\" must be a mapping")
	}

	fields := make([]RawField, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		nameNode, valueNode := node.Content[i], node.Content[i+1]

		var rf RawField
		if err := valueNode.Decode(&rf); err != nil {
			return nil, fmt.Errorf("field %q: %w", nameNode.Value, err)
		}
		rf.Name = nameNode.Value

		if rf.Type == "bitmask" {
			flagsNode := findMappingValue(valueNode, "flags")
			if flagsNode != nil {
				flags, err := flagsFromYAMLNode(flagsNode)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", rf.Name, err)
				}
				rf.Flags = flags
			}
		}

		fields = append(fields, rf)
	}

	return fields, nil
}

func flagsFromYAMLNode(node *yaml.Node) ([]RawFlag, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("\"flags\" must be a mapping")
	}

	flags := make([]RawFlag, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		nameNode, posNode := node.Content[i], node.Content[i+1]
		var pos int
		if err := posNode.Decode(&pos); err != nil {
			return nil, fmt.Errorf("flag %q: %w", nameNode.Value, err)
		}
		flags = append(flags, RawFlag{Name: nameNode.Value, Position: pos})
	}

	return flags, nil
}

func findMappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func readTOML(data []byte) (RawSchema, error) {
	var doc struct {
		Version string                    `toml:"version"`
		Name    string                    `toml:"name"`
		Fields  map[string]toml.Primitive `toml:"fields"`
	}

	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return RawSchema{}, fmt.Errorf("failed to decode TOML schema: %w", err)
	}

	// toml.MetaData.Keys() reports table keys in file declaration
	// order, which is how we keep "fields" ordered despite Go's map
	// randomizing doc.Fields itself.
	order := make([]string, 0, len(doc.Fields))
	seen := make(map[string]bool, len(doc.Fields))
	for _, k := range md.Keys() {
		if len(k) == 2 && k[0] == "fields" && !seen[k[1]] {
			seen[k[1]] = true
			order = append(order, k[1])
		}
	}

	fields := make([]RawField, 0, len(order))
	for _, name := range order {
		var rf RawField
		if err := md.PrimitiveDecode(doc.Fields[name], &rf); err != nil {
			return RawSchema{}, fmt.Errorf("field %q: %w", name, err)
		}
		rf.Name = name

		if rf.Type == "bitmask" {
			var flagPrims struct {
				Flags map[string]int `toml:"flags"`
			}
			if err := md.PrimitiveDecode(doc.Fields[name], &flagPrims); err != nil {
				return RawSchema{}, fmt.Errorf("field %q: %w", name, err)
			}

			// An inline TOML table doesn't preserve declaration order
			// through the TOML decoder's map decode, so flags are ordered by
			// bit position instead — deterministic and, unlike file
			// order, meaningful on its own.
			rf.Flags = make([]RawFlag, 0, len(flagPrims.Flags))
			for flagName, pos := range flagPrims.Flags {
				rf.Flags = append(rf.Flags, RawFlag{Name: flagName, Position: pos})
			}
			sort.Slice(rf.Flags, func(i, j int) bool {
				return rf.Flags[i].Position < rf.Flags[j].Position
			})
		}

		fields = append(fields, rf)
	}

	return RawSchema{Version: doc.Version, Name: doc.Name, Fields: fields}, nil
}

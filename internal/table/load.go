package table

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Format is the source language of a table.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported table extension %q: must be .yaml, .yml or .cue", filepath.Ext(path))
	}
}

// CompileError is a table that could not be decoded. Pos is set for CUE
// sources.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and parses the table at path.
func LoadFile(path string) (*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	return parse(data, format, path)
}

// Parse decodes a table from data. It does not validate it.
func Parse(data []byte, format Format) (*Definition, error) {
	return parse(data, format, "table."+string(format))
}

func parse(data []byte, format Format, filename string) (*Definition, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatCUE:
		return parseCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported table format %q", format)
	}
}

func parseYAML(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}

	// Node decoding does not honour KnownFields, so line numbers are
	// collected in a second pass over the raw tree.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		for i, line := range transitionLines(&root) {
			if i < len(def.Transitions) {
				def.Transitions[i].Line = line
			}
		}
	}
	return &def, nil
}

// transitionLines returns the line of every item of the top-level
// transitions list.
func transitionLines(root *yaml.Node) []int {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "transitions" {
			continue
		}
		var lines []int
		for _, item := range doc.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}

// parseCUE unifies the source with #Machine and decodes the concrete
// result. A top-level "machine" field is used when present, so a CUE file
// may carry helper definitions next to the table.
func parseCUE(data []byte, filename string) (*Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling table schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if m := v.LookupPath(cue.ParsePath("machine")); m.Exists() {
		v = m
	}

	unified := schema.LookupPath(cue.ParsePath("#Machine")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var def Definition
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, &CompileError{Field: "cue", Message: err.Error(), Pos: v.Pos()}
	}
	return &def, nil
}

// formatCUEError extracts the position of the first CUE error.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}

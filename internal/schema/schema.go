// Package schema holds declarative JSON Schema documents describing the
// records produced by generation, renders them for prompts and validates
// generated documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	name     string
	rendered string
	compiled *gojsonschema.Schema
}

// ValidationError lists every constraint a document violated.
type ValidationError struct {
	Schema   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document does not match %s schema: %s", e.Schema, strings.Join(e.Problems, "; "))
}

// New compiles the raw JSON Schema document.
func New(name string, raw []byte) (*Schema, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("schema %s is not valid json: %w", name, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	return &Schema{
		name:     name,
		rendered: indented.String(),
		compiled: compiled,
	}, nil
}

// MustNew is like New but panics on error. It is meant for embedded schemas.
func MustNew(name string, raw []byte) *Schema {
	s, err := New(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// Render returns the indented schema document as it is shown to the model.
func (s *Schema) Render() string { return s.rendered }

// Validate checks a decoded JSON document (as produced by encoding/json into any).
func (s *Schema) Validate(document any) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validate against %s schema: %w", s.name, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &ValidationError{Schema: s.name, Problems: problems}
}

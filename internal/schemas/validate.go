// Package schemas validates exported reports, recommendations and rating
// snapshots against JSON Schema.
package schemas

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	schemafiles "github.com/jonathan/plan-auditor/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is one violation, Field being a dotted path or "(root)".
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "validation failed against %s:", ve.Schema)
	for _, fe := range ve.Errors {
		fmt.Fprintf(&sb, "\n  - %s: %s", fe.Field, fe.Message)
	}
	return sb.String()
}

// SchemaLoadError is returned when a schema cannot be found or compiled.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// BuiltinName maps "report" or "report.schema.json" to the bundled schema
// file name. ok is false for anything that is not bundled.
func BuiltinName(ref string) (string, bool) {
	name := ref
	if !strings.HasSuffix(name, ".schema.json") {
		name += ".schema.json"
	}
	return name, slices.Contains(schemafiles.Names(), name)
}

var (
	compiledMu sync.Mutex
	compiled   = map[string]*gojsonschema.Schema{}
)

// Load returns the compiled schema for ref: a bundled schema name, with or
// without the ".schema.json" suffix, or a path to a schema file. Bundled
// schemas are compiled once.
func Load(ref string) (*gojsonschema.Schema, string, error) {
	if name, ok := BuiltinName(ref); ok {
		compiledMu.Lock()
		defer compiledMu.Unlock()
		if s, ok := compiled[name]; ok {
			return s, name, nil
		}
		raw, err := schemafiles.Read(name)
		if err != nil {
			return nil, name, &SchemaLoadError{Path: name, Message: "bundled schema missing", Cause: err}
		}
		s, err := compile(name, raw)
		if err != nil {
			return nil, name, err
		}
		compiled[name] = s
		return s, name, nil
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		return nil, ref, &SchemaLoadError{
			Path:    ref,
			Message: fmt.Sprintf("not a bundled schema (%s) and not readable", strings.Join(schemafiles.Names(), ", ")),
			Cause:   err,
		}
	}
	s, err := compile(ref, raw)
	return s, ref, err
}

func compile(path string, raw []byte) (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema failed to compile", Cause: err}
	}
	return s, nil
}

// ValidateBytes validates a JSON document against the schema named by ref.
func ValidateBytes(ref string, data []byte) error {
	s, name, err := Load(ref)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	return resultError(name, result)
}

// ValidateFile validates the JSON file at docPath against the schema named by ref.
func ValidateFile(ref, docPath string) error {
	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	return ValidateBytes(ref, data)
}

// ValidateValue marshals v and validates it against the schema named by ref.
func ValidateValue(ref string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return ValidateBytes(ref, data)
}

func resultError(schema string, result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{Schema: schema, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}

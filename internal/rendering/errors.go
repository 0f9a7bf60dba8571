// Package rendering exports completion reports as JSON, YAML, text, Markdown, CSV and PDF.
package rendering

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is wrapped by every error about an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// TemplateError is a text or Markdown template that could not be loaded,
// parsed or executed. Path is empty for the built-in templates.
type TemplateError struct {
	Format  Format
	Path    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	name := "built-in " + string(e.Format) + " template"
	if e.Path != "" {
		name = string(e.Format) + " template " + e.Path
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", name, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError is any other failure to produce an export.
type RenderError struct {
	Format  Format
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	prefix := "export"
	if e.Format != "" {
		prefix = string(e.Format) + " export"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// tagFormat records which export failed on the package's typed errors.
func tagFormat(err error, format Format) error {
	var renderErr *RenderError
	if errors.As(err, &renderErr) && renderErr.Format == "" {
		renderErr.Format = format
	}
	var templateErr *TemplateError
	if errors.As(err, &templateErr) && templateErr.Format == "" {
		templateErr.Format = format
	}
	return err
}

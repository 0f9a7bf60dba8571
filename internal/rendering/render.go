package rendering

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

// ReportTitle heads text, Markdown and PDF exports
const ReportTitle = "清华大学培养方案完成情况报告"

const ruleWidth = 60

// timeLayout matches the zh-CN locale date rendering
const timeLayout = "2006/1/2 15:04:05"

// Options controls export rendering.
type Options struct {
	// TemplatePath overrides the built-in text or Markdown template
	TemplatePath string
	// FontPath is a UTF-8 TrueType font used for PDF output
	FontPath string
	// Location is the time zone used for timestamps, local time when nil
	Location *time.Location
}

// Export is the document written by the JSON and YAML formats.
type Export struct {
	Report          *types.Report          `json:"report"`
	Recommendations []types.Recommendation `json:"recommendations"`
}

// TemplateData represents the data structure passed to the report templates
type TemplateData struct {
	Title           string
	Student         types.StudentInfo
	GeneratedAt     string
	Summary         types.Summary
	Sections        []KindSection
	Groups          []types.GroupAnalysis
	Recommendations []types.Recommendation
}

// KindSection is one category kind's rollup, present even when the document had no such category.
type KindSection struct {
	Name   string
	Rollup types.CategoryRollup
}

// Render exports a report and its recommendations in the given format.
func Render(format Format, report *types.Report, recs []types.Recommendation, opts Options) ([]byte, error) {
	if report == nil {
		return nil, &RenderError{Format: format, Message: "report is nil"}
	}
	if recs == nil {
		recs = []types.Recommendation{}
	}

	out, err := render(format, report, recs, opts)
	if err != nil {
		return nil, tagFormat(err, format)
	}
	return out, nil
}

func render(format Format, report *types.Report, recs []types.Recommendation, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(report, recs)
	case FormatYAML:
		return renderYAML(report, recs)
	case FormatText, FormatMarkdown:
		return renderTemplate(format, report, recs, opts)
	case FormatCSV:
		return renderCSV(GroupDataset(report))
	case FormatPDF:
		return renderPDF(report, recs, opts)
	}
	return nil, &RenderError{Format: format, Message: "no renderer", Cause: ErrUnsupportedFormat}
}

func renderJSON(report *types.Report, recs []types.Recommendation) ([]byte, error) {
	data, err := json.MarshalIndent(Export{Report: report, Recommendations: recs}, "", "  ")
	if err != nil {
		return nil, &RenderError{Message: "failed to marshal JSON", Cause: err}
	}
	return data, nil
}

// renderYAML goes through JSON so that YAML keys match the JSON field names.
func renderYAML(report *types.Report, recs []types.Recommendation) ([]byte, error) {
	raw, err := renderJSON(report, recs)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &RenderError{Message: "failed to decode intermediate JSON", Cause: err}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &RenderError{Message: "failed to marshal YAML", Cause: err}
	}
	return out, nil
}

func renderTemplate(format Format, report *types.Report, recs []types.Recommendation, opts Options) ([]byte, error) {
	tmpl, err := loadTemplate(format, opts.TemplatePath)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, BuildTemplateData(report, recs, opts.Location)); err != nil {
		return nil, &TemplateError{
			Path:    opts.TemplatePath,
			Message: "failed to execute template",
			Cause:   err,
		}
	}
	return buf.Bytes(), nil
}

// BuildTemplateData constructs the template data structure from a report.
func BuildTemplateData(report *types.Report, recs []types.Recommendation, loc *time.Location) *TemplateData {
	if loc == nil {
		loc = time.Local
	}

	sections := make([]KindSection, 0, len(types.CategoryKinds))
	for _, kind := range types.CategoryKinds {
		rollup, ok := report.Rollup(kind)
		if !ok {
			rollup = types.CategoryRollup{Kind: kind}
		}
		sections = append(sections, KindSection{Name: kind.DisplayName(), Rollup: rollup})
	}

	return &TemplateData{
		Title:           ReportTitle,
		Student:         report.Student,
		GeneratedAt:     report.GeneratedAt.In(loc).Format(timeLayout),
		Summary:         report.Summary,
		Sections:        sections,
		Groups:          report.AllGroups(),
		Recommendations: recs,
	}
}

var templateFuncs = template.FuncMap{
	"num":  types.FormatNumber,
	"md":   EscapeMarkdown,
	"rule": func(ch string) string { return strings.Repeat(ch, ruleWidth) },
	"inc":  func(i int) int { return i + 1 },
	"done": func(b bool) string {
		if b {
			return "✓ 已完成"
		}
		return "✗ 未完成"
	},
	// general-education groups list every course on offer, so the pending list is noise
	"showPending": func(g types.GroupAnalysis) bool {
		return len(g.IncompleteCourseList) > 0 && !strings.Contains(g.GroupName, "通识")
	},
	"rating": func(r *types.RatingNote) string {
		if r == nil {
			return ""
		}
		return fmt.Sprintf(" ⭐ %.1f (%d条评价)", r.Rating, r.CommentCount)
	},
}

// loadTemplate parses the override template when a path is given, otherwise the built-in one
func loadTemplate(format Format, templatePath string) (*template.Template, error) {
	if templatePath != "" {
		return parseTemplate(templatePath)
	}

	name := "templates/report.txt.tmpl"
	if format == FormatMarkdown {
		name = "templates/report.md.tmpl"
	}
	content, err := builtinTemplates.ReadFile(name)
	if err != nil {
		return nil, &TemplateError{Message: "missing from binary: " + name, Cause: err}
	}
	return newTemplate(string(format), string(content))
}

// parseTemplate reads and parses a report template file
func parseTemplate(templatePath string) (*template.Template, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TemplateError{Path: templatePath, Message: "template file not found", Cause: err}
		}
		return nil, &TemplateError{Path: templatePath, Message: "failed to read template file", Cause: err}
	}
	tmpl, err := newTemplate("report", string(content))
	if err != nil {
		var templateErr *TemplateError
		if errors.As(err, &templateErr) {
			templateErr.Path = templatePath
		}
		return nil, err
	}
	return tmpl, nil
}

func newTemplate(name, content string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(content)
	if err != nil {
		return nil, &TemplateError{
			Message: "failed to parse template",
			Cause:   err,
		}
	}
	return tmpl, nil
}

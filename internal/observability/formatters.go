// Package observability provides logging, metrics and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/plan-auditor/internal/analysis"
	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxLineRunes bounds a line inside a box
	maxLineRunes = boxWidth - 4
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, maxLineRunes)))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// pad right-pads s to the box width, counting runes
func pad(s string) string {
	n := len([]rune(s))
	if n >= maxLineRunes {
		return s
	}
	return s + strings.Repeat(" ", maxLineRunes-n)
}

// PrintSummary outputs the student's overall completion and per-category totals.
func (p *Printer) PrintSummary(report *types.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	if report.Student.StudentID != "" || report.Student.Name != "" {
		sb.WriteString(fmt.Sprintf("Student:    %s %s\n", report.Student.StudentID, report.Student.Name))
	}
	s := report.Summary
	sb.WriteString(fmt.Sprintf("Required:   %s credits\n", types.FormatNumber(s.TotalRequired)))
	sb.WriteString(fmt.Sprintf("Completed:  %s credits (%.2f%%)\n", types.FormatNumber(s.TotalCompleted), s.CompletionRate))
	sb.WriteString(fmt.Sprintf("Remaining:  %s credits\n", types.FormatNumber(s.TotalRemaining)))

	if len(report.Categories) > 0 {
		sb.WriteString("\n")
		for _, c := range report.Categories {
			sb.WriteString(fmt.Sprintf("%s  %s/%s credits, %d/%d groups done\n",
				c.Label, types.FormatNumber(c.TotalCompleted), types.FormatNumber(c.TotalRequired),
				c.CompletedGroups(), len(c.Groups)))
		}
	}
	sb.WriteString(fmt.Sprintf("\nIncomplete groups: %d", len(report.IncompleteGroups)))

	p.printBox("COMPLETION SUMMARY", sb.String())
}

// PrintRecommendations outputs the top N recommendations with their first suggestion.
func (p *Printer) PrintRecommendations(recs []types.Recommendation) {
	if len(recs) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total recommendations: %d\n\n", len(recs)))

	count := min(len(recs), maxItemsToShow)
	for i := 0; i < count; i++ {
		rec := recs[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, rec.GroupName))
		sb.WriteString(fmt.Sprintf("    Priority: %d  Remaining: %s credits\n", rec.Priority, types.FormatNumber(rec.RemainingCredits)))
		if len(rec.Suggestions) > 0 {
			sb.WriteString(fmt.Sprintf("    %s\n", rec.Suggestions[0].Message))
			for _, c := range rec.Suggestions[0].Courses {
				line := fmt.Sprintf("      • %s %s", c.CourseID, c.CourseName)
				if c.Rating != nil {
					line += fmt.Sprintf(" ★%.1f", c.Rating.Rating)
				}
				sb.WriteString(line + "\n")
			}
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(recs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more groups", len(recs)-maxItemsToShow))
	}

	p.printBox("TOP RECOMMENDATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDiagnostics outputs decoding counters and the first few anomalies.
func (p *Printer) PrintDiagnostics(diag parsing.Diagnostics, stats analysis.BuildStats) {
	if !diag.TableFound {
		p.printBox("DECODING", "Plan table not found")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Data rows:        %d\n", diag.DataRows))
	sb.WriteString(fmt.Sprintf("Decorative rows:  %d\n", diag.DecorativeRows))
	sb.WriteString(fmt.Sprintf("Courses:          %d\n", diag.Courses))
	if stats.OrphanGroups+stats.OrphanCourses > 0 {
		sb.WriteString(fmt.Sprintf("Orphans:          %d groups, %d courses\n", stats.OrphanGroups, stats.OrphanCourses))
	}
	if stats.ExtraCategories > 0 {
		sb.WriteString(fmt.Sprintf("Extra categories: %d (%d groups excluded)\n", stats.ExtraCategories, stats.UnkindedGroups))
	}

	if len(diag.Anomalies) > 0 {
		sb.WriteString(fmt.Sprintf("\nAnomalies: %d\n", len(diag.Anomalies)))
		count := min(len(diag.Anomalies), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", diag.Anomalies[i].String()))
		}
		if len(diag.Anomalies) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(diag.Anomalies)-maxItemsToShow))
		}
	}

	p.printBox("DECODING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRatings outputs the size and freshness of a rating snapshot.
func (p *Printer) PrintRatings(set *types.RatingSet, updated bool) {
	if set == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Courses:  %d\n", len(set.Courses)))
	sb.WriteString(fmt.Sprintf("Reviews:  %d\n", set.TotalCount))
	if !set.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Updated:  %s\n", set.UpdatedAt.Format("2006-01-02 15:04")))
	}
	if updated {
		sb.WriteString("Status:   refreshed")
	} else {
		sb.WriteString("Status:   already up to date")
	}

	p.printBox("COURSE RATINGS", sb.String())
}

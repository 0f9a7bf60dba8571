package rendering

import (
	"bytes"
	"fmt"

	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/jung-kurt/gofpdf"
)

const (
	pdfFontFamily = "report"
	pdfPageWidth  = 190.0
)

// pdfLabels holds the fixed strings of a PDF export. Core PDF fonts cannot
// draw CJK glyphs, so English labels are used unless a UTF-8 font is given.
type pdfLabels struct {
	title           string
	studentID       string
	name            string
	generated       string
	required        string
	completed       string
	remaining       string
	rate            string
	groups          string
	recommendations string
	priority        string
	headers         map[string]string
}

var chineseLabels = pdfLabels{
	title:           ReportTitle,
	studentID:       "学号",
	name:            "姓名",
	generated:       "生成时间",
	required:        "应完成总学分",
	completed:       "已完成学分",
	remaining:       "剩余学分",
	rate:            "完成率",
	groups:          "详细课程组完成情况",
	recommendations: "学习建议（按优先级排序）",
	priority:        "优先级",
}

var englishLabels = pdfLabels{
	title:           "Training Plan Completion Report",
	studentID:       "Student ID",
	name:            "Name",
	generated:       "Generated",
	required:        "Required credits",
	completed:       "Completed credits",
	remaining:       "Remaining credits",
	rate:            "Completion rate",
	groups:          "Requirement groups",
	recommendations: "Recommendations",
	priority:        "Priority",
	headers: map[string]string{
		colGroup:            "Group",
		colCategory:         "Category",
		colRequiredCredits:  "Req. cr",
		colCompletedCredits: "Done cr",
		colRemainingCredits: "Left cr",
		colRequiredCourses:  "Req. #",
		colCompletedCourses: "Done #",
		colStatus:           "Complete",
	},
}

func (l pdfLabels) header(h string) string {
	if l.headers == nil {
		return h
	}
	if v, ok := l.headers[h]; ok {
		return v
	}
	return h
}

// renderPDF creates a PDF with the summary, a group table and the ranked recommendations.
func renderPDF(report *types.Report, recs []types.Recommendation, opts Options) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)

	family, bold := "Arial", "B"
	labels := englishLabels
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opts.FontPath != "" {
		pdf.AddUTF8Font(pdfFontFamily, "", opts.FontPath)
		if err := pdf.Error(); err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("failed to load font %s", opts.FontPath), Cause: err}
		}
		family, bold = pdfFontFamily, ""
		labels = chineseLabels
		tr = func(s string) string { return s }
	}

	data := BuildTemplateData(report, recs, opts.Location)
	pdf.AddPage()

	pdf.SetFont(family, bold, 14)
	pdf.CellFormat(0, 10, tr(labels.title), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont(family, "", 10)
	lines := []string{
		fmt.Sprintf("%s: %s    %s: %s", labels.studentID, data.Student.StudentID, labels.name, data.Student.Name),
		fmt.Sprintf("%s: %s", labels.generated, data.GeneratedAt),
		fmt.Sprintf("%s: %s    %s: %s    %s: %s    %s: %s%%",
			labels.required, types.FormatNumber(data.Summary.TotalRequired),
			labels.completed, types.FormatNumber(data.Summary.TotalCompleted),
			labels.remaining, types.FormatNumber(data.Summary.TotalRemaining),
			labels.rate, types.FormatNumber(data.Summary.CompletionRate)),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 6, tr(line), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	ds := GroupDataset(report)
	pdf.SetFont(family, bold, 11)
	pdf.CellFormat(0, 8, tr(labels.groups), "", 1, "", false, 0, "")

	pdf.SetFont(family, bold, 8)
	colWidth := pdfPageWidth / float64(len(ds.Headers))
	for _, h := range ds.Headers {
		pdf.CellFormat(colWidth, 7, tr(labels.header(h)), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	for _, row := range ds.Rows {
		for _, h := range ds.Headers {
			pdf.CellFormat(colWidth, 6, tr(row[h]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(recs) > 0 {
		pdf.Ln(4)
		pdf.SetFont(family, bold, 11)
		pdf.CellFormat(0, 8, tr(labels.recommendations), "", 1, "", false, 0, "")
		pdf.SetFont(family, "", 9)
		for i, rec := range recs {
			head := fmt.Sprintf("%d. %s (%s %d, %s %s)", i+1, rec.GroupName,
				labels.priority, rec.Priority, labels.remaining, types.FormatNumber(rec.RemainingCredits))
			pdf.MultiCell(0, 5, tr(head), "", "", false)
			for _, s := range rec.Suggestions {
				pdf.MultiCell(0, 5, tr("    "+s.Message), "", "", false)
				for _, c := range s.Courses {
					item := fmt.Sprintf("      - [%s] %s (%s)", c.CourseID, c.CourseName, types.FormatNumber(c.Credits))
					pdf.MultiCell(0, 5, tr(item), "", "", false)
				}
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, &RenderError{Message: "render pdf", Cause: err}
	}
	return buf.Bytes(), nil
}

package parsing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/plan-auditor/internal/types"
)

// Document is the grid and page-level facts read from a plan page.
type Document struct {
	Student    types.StudentInfo `json:"student"`
	Rows       []types.Row       `json:"rows"`
	TableFound bool              `json:"table_found"`
}

var (
	studentIDPattern        = regexp.MustCompile(`学号[：:\s]*(\d+)`)
	studentNamePattern      = regexp.MustCompile(`姓名[：:\s]*([^\s&,]+)`)
	totalCreditsPattern     = regexp.MustCompile(`应完成总学分[：:\s]*(\d+)`)
	completedCreditsPattern = regexp.MustCompile(`方案内实际完成总学分[：:\s]*([\d.]+)`)
)

// ParseDocument reads an HTML plan page into a grid. A page without the plan
// table yields no rows and TableFound unset; student info is still extracted.
func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &DocumentError{Message: "failed to parse HTML", Cause: err}
	}

	out := &Document{
		Student: ExtractStudentInfo(doc.Find("body").Text()),
	}

	table := findMainTable(doc)
	if table == nil {
		return out, nil
	}

	out.TableFound = true
	out.Rows = extractRows(table)
	return out, nil
}

// ExtractStudentInfo pulls identity and declared credit totals out of page text.
// Fields that are not found stay zero.
func ExtractStudentInfo(text string) types.StudentInfo {
	var info types.StudentInfo
	if m := studentIDPattern.FindStringSubmatch(text); m != nil {
		info.StudentID = m[1]
	}
	if m := studentNamePattern.FindStringSubmatch(text); m != nil {
		info.Name = m[1]
	}
	if m := totalCreditsPattern.FindStringSubmatch(text); m != nil {
		info.TotalCredits = ParseNumber(m[1])
	}
	if m := completedCreditsPattern.FindStringSubmatch(text); m != nil {
		info.CompletedCredits = ParseNumber(m[1])
	}
	return info
}

// findMainTable returns the innermost table whose text contains both header markers.
func findMainTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasHeaderMarkers(s) {
			return true
		}
		nested := s.Find("table").FilterFunction(func(_ int, inner *goquery.Selection) bool {
			return hasHeaderMarkers(inner)
		})
		if nested.Length() > 0 {
			return true
		}
		found = s
		return false
	})
	return found
}

func hasHeaderMarkers(s *goquery.Selection) bool {
	text := s.Text()
	return strings.Contains(text, HeaderCategoryMarker) && strings.Contains(text, HeaderGroupMarker)
}

func extractRows(table *goquery.Selection) []types.Row {
	var rows []types.Row
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row types.Row
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			row = append(row, types.Cell{
				Text:    td.Text(),
				RowSpan: parseRowSpan(td.AttrOr("rowspan", "1")),
				Color:   fontColor(td),
			})
		})
		rows = append(rows, row)
	})
	return rows
}

func parseRowSpan(attr string) int {
	n, err := strconv.Atoi(strings.TrimSpace(attr))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// fontColor returns the out-of-plan color when any font in the cell uses it,
// otherwise the first font color found.
func fontColor(td *goquery.Selection) string {
	color := ""
	td.Find("font[color]").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		c := f.AttrOr("color", "")
		if IsOutOfPlan(c) {
			color = c
			return false
		}
		if color == "" {
			color = c
		}
		return true
	})
	return color
}

package parsing

import (
	"strings"

	"github.com/jonathan/plan-auditor/internal/types"
)

// Header markers that identify the column header row of the plan table
const (
	HeaderCategoryMarker = "课程属性"
	HeaderGroupMarker    = "课组名"
)

// CategoryMarkers are the substrings that identify a category label.
var CategoryMarkers = []string{"必修", "限选", "任选"}

// minDataCells is the narrowest row that can carry course data
const minDataCells = 5

// statsCells is the number of trailing cells holding declared group stats
const statsCells = 5

// CategoryStart opens a new category.
type CategoryStart struct {
	Label   string `json:"label"`
	RowSpan int    `json:"row_span"`
}

// GroupStart opens a new group with the stats declared at the end of its first row.
type GroupStart struct {
	Name    string           `json:"name"`
	RowSpan int              `json:"row_span"`
	Stats   types.GroupStats `json:"stats"`
}

// RowResult is what the decoder read from one data row. A single row may open
// a category, open a group, and carry a course all at once.
type RowResult struct {
	Index      int                 `json:"index"`
	Decorative bool                `json:"decorative,omitempty"`
	Category   *CategoryStart      `json:"category,omitempty"`
	Group      *GroupStart         `json:"group,omitempty"`
	Course     *types.CourseRecord `json:"course,omitempty"`
}

// Diagnostics summarizes a decode pass.
type Diagnostics struct {
	TableFound     bool      `json:"table_found"`
	DataRows       int       `json:"data_rows"`
	DecorativeRows int       `json:"decorative_rows"`
	Courses        int       `json:"courses"`
	Anomalies      []Anomaly `json:"anomalies,omitempty"`
}

// Decoded is the output of a decode pass.
type Decoded struct {
	Rows        []RowResult `json:"rows"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// FindDataStart returns the index of the first row after the header row.
// The header row is the first whose text contains both header markers.
func FindDataStart(rows []types.Row) (int, bool) {
	for i, row := range rows {
		var sb strings.Builder
		for _, c := range row {
			sb.WriteString(c.Text)
		}
		text := sb.String()
		if strings.Contains(text, HeaderCategoryMarker) && strings.Contains(text, HeaderGroupMarker) {
			return i + 1, true
		}
	}
	return 0, false
}

// DecodeGrid locates the header row and decodes the rows after it. A grid
// without a header row decodes to nothing with TableFound unset.
func DecodeGrid(rows []types.Row) Decoded {
	start, ok := FindDataStart(rows)
	if !ok {
		return Decoded{}
	}
	out := DecodeRows(rows[start:])
	for i := range out.Rows {
		out.Rows[i].Index += start
	}
	for i := range out.Diagnostics.Anomalies {
		out.Diagnostics.Anomalies[i].Row += start
	}
	return out
}

// DecodeRows decodes data rows, tracking the vertical spans of category and
// group label cells so that each row's cells can be attributed correctly.
func DecodeRows(rows []types.Row) Decoded {
	d := &decoder{}
	out := Decoded{
		Rows:        make([]RowResult, 0, len(rows)),
		Diagnostics: Diagnostics{TableFound: true},
	}

	for i, row := range rows {
		res := d.decodeRow(i, row)
		if res.Decorative {
			out.Diagnostics.DecorativeRows++
		} else {
			out.Diagnostics.DataRows++
		}
		if res.Course != nil {
			out.Diagnostics.Courses++
		}
		out.Rows = append(out.Rows, res)
	}
	out.Diagnostics.Anomalies = d.anomalies
	return out
}

// decoder holds the span counters for one decode pass.
type decoder struct {
	categoryRowsRemaining int
	groupRowsRemaining    int
	anomalies             []Anomaly
}

func (d *decoder) decodeRow(index int, cells types.Row) RowResult {
	res := RowResult{Index: index}
	if len(cells) < minDataCells {
		res.Decorative = true
		return res
	}

	cursor := 0

	// Category label column
	if d.categoryRowsRemaining == 0 {
		label := CleanText(cells[cursor].Text)
		if containsCategoryMarker(label) {
			res.Category = &CategoryStart{Label: label, RowSpan: cells[cursor].Span()}
			d.categoryRowsRemaining = cells[cursor].Span()
			cursor++
		} else {
			d.anomalies = append(d.anomalies, Anomaly{Row: index, Kind: AnomalyCategoryLabel, Text: label})
		}
	}
	d.categoryRowsRemaining = max(0, d.categoryRowsRemaining-1)

	// Group label column
	if d.groupRowsRemaining == 0 {
		name := ""
		if cursor < len(cells) {
			name = CleanText(cells[cursor].Text)
		}
		if name != "" {
			res.Group = &GroupStart{
				Name:    name,
				RowSpan: cells[cursor].Span(),
				Stats:   declaredStats(cells),
			}
			d.groupRowsRemaining = cells[cursor].Span()
			cursor++
		} else {
			d.anomalies = append(d.anomalies, Anomaly{Row: index, Kind: AnomalyGroupLabel})
		}
	}
	d.groupRowsRemaining = max(0, d.groupRowsRemaining-1)

	// Course columns: id, name, credits, grade, gpa
	if cursor+4 < len(cells) {
		res.Course = readCourse(cells[cursor : cursor+5])
	}

	return res
}

func containsCategoryMarker(label string) bool {
	for _, m := range CategoryMarkers {
		if strings.Contains(label, m) {
			return true
		}
	}
	return false
}

// declaredStats reads the trailing stats cells of a group's first row.
func declaredStats(cells types.Row) types.GroupStats {
	n := len(cells)
	if n < statsCells {
		return types.GroupStats{}
	}
	return types.GroupStats{
		RequiredCredits:  ParseNumber(CleanText(cells[n-5].Text)),
		CompletedCredits: ParseNumber(CleanText(cells[n-4].Text)),
		RequiredCourses:  ParseCount(CleanText(cells[n-3].Text)),
		CompletedCourses: ParseCount(CleanText(cells[n-2].Text)),
		IsCompleted:      strings.Contains(CleanText(cells[n-1].Text), "是"),
	}
}

func readCourse(cells types.Row) *types.CourseRecord {
	id := CleanText(cells[0].Text)
	name := CleanText(cells[1].Text)
	if id == "" || name == "" {
		return nil
	}
	grade := CleanText(cells[3].Text)
	return &types.CourseRecord{
		CourseID:    id,
		CourseName:  name,
		Credits:     ParseNumber(CleanText(cells[2].Text)),
		Grade:       grade,
		GPA:         ParseNumber(CleanText(cells[4].Text)),
		Status:      ClassifyGrade(grade),
		IsOutOfPlan: IsOutOfPlan(cells[1].Color),
	}
}

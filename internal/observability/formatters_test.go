package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/plan-auditor/internal/analysis"
	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/stretchr/testify/assert"
)

func sampleReport() *types.Report {
	g := types.GroupAnalysis{GroupName: "数学基础", CategoryLabel: "必修课程", Kind: types.KindRequired, RequiredCredits: 10, CompletedCredits: 4}
	return &types.Report{
		Student: types.StudentInfo{StudentID: "2021010001", Name: "张三"},
		Summary: types.Summary{TotalRequired: 150, TotalCompleted: 90, TotalRemaining: 60, CompletionRate: 60},
		Categories: []types.CategoryRollup{
			{Kind: types.KindRequired, Label: "必修课程", Groups: []types.GroupAnalysis{g}, TotalRequired: 10, TotalCompleted: 4},
		},
		IncompleteGroups: []types.GroupAnalysis{g},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSummary(sampleReport())
	output := buf.String()

	assert.Contains(t, output, "COMPLETION SUMMARY")
	assert.Contains(t, output, "2021010001 张三")
	assert.Contains(t, output, "150 credits")
	assert.Contains(t, output, "60.00%")
	assert.Contains(t, output, "必修课程  4/10 credits, 0/1 groups done")
	assert.Contains(t, output, "Incomplete groups: 1")
}

func TestPrintSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSummary(nil)

	assert.Empty(t, buf.String())
}

func TestPrintRecommendations(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	recs := make([]types.Recommendation, 7)
	for i := range recs {
		recs[i] = types.Recommendation{GroupName: "组" + string(rune('A'+i)), Priority: 100 - i, RemainingCredits: 2}
	}
	recs[0].Suggestions = []types.Suggestion{{
		Kind:    types.SuggestionSpecific,
		Message: "还需完成以下课程（2学分）：",
		Courses: []types.CourseRef{{CourseID: "10421", CourseName: "线性代数", Rating: &types.RatingNote{Rating: 4.3}}},
	}}

	p.PrintRecommendations(recs)
	output := buf.String()

	assert.Contains(t, output, "TOP RECOMMENDATIONS")
	assert.Contains(t, output, "#1  组A")
	assert.Contains(t, output, "Priority: 100")
	assert.Contains(t, output, "10421 线性代数 ★4.3")
	assert.Contains(t, output, "#5  组E")
	assert.NotContains(t, output, "#6")
	assert.Contains(t, output, "... and 2 more groups")
}

func TestPrintRecommendations_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRecommendations(nil)
	assert.Empty(t, buf.String())
}

func TestPrintDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	diag := parsing.Diagnostics{
		TableFound:     true,
		DataRows:       12,
		DecorativeRows: 2,
		Courses:        9,
		Anomalies: []parsing.Anomaly{
			{Row: 3, Kind: parsing.AnomalyCategoryLabel, Text: "其他"},
		},
	}
	p.PrintDiagnostics(diag, analysis.BuildStats{ExtraCategories: 1, UnkindedGroups: 2})
	output := buf.String()

	assert.Contains(t, output, "DECODING")
	assert.Contains(t, output, "Data rows:        12")
	assert.Contains(t, output, "Extra categories: 1 (2 groups excluded)")
	assert.Contains(t, output, "Anomalies: 1")
	assert.NotContains(t, output, "Orphans")
}

func TestPrintDiagnostics_TableMissing(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintDiagnostics(parsing.Diagnostics{}, analysis.BuildStats{})
	assert.Contains(t, buf.String(), "Plan table not found")
}

func TestPrintRatings(t *testing.T) {
	var buf bytes.Buffer
	set := &types.RatingSet{
		Courses:    []types.CourseRating{{CourseID: "1"}, {CourseID: "2"}},
		TotalCount: 40,
		UpdatedAt:  time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	}
	NewPrinter(&buf).PrintRatings(set, true)
	output := buf.String()

	assert.Contains(t, output, "Courses:  2")
	assert.Contains(t, output, "Reviews:  40")
	assert.Contains(t, output, "2026-03-02 09:30")
	assert.Contains(t, output, "refreshed")
}

func TestPrintBox_TruncatesByRunes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("课", 100))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[3], "...")
	assert.True(t, strings.HasPrefix(lines[3], "│ "))
	assert.True(t, strings.HasSuffix(lines[3], " │"))
}

func TestTruncateAndPad(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "课程...", truncate("课程设计实验", 5))
	assert.Len(t, []rune(pad("课")), maxLineRunes)
}

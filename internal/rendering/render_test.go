package rendering

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func testReport() (*types.Report, []types.Recommendation) {
	math := types.GroupAnalysis{
		GroupName: "数学", CategoryLabel: "必修", Kind: types.KindRequired,
		RequiredCredits: 9, CompletedCredits: 5, RequiredCourses: 2, CompletedCourses: 1,
		RemainingCredits: 4, RemainingCourses: 1,
		CompletedCourseList:  []types.CourseRef{{CourseID: "M1", CourseName: "微积分", Credits: 5, Grade: "A"}},
		EnrolledCourseList:   []types.CourseRef{},
		IncompleteCourseList: []types.CourseRef{{CourseID: "M2", CourseName: "线性代数", Credits: 4}},
	}
	general := types.GroupAnalysis{
		GroupName: "通识选修", CategoryLabel: "任选", Kind: types.KindOptional,
		RequiredCredits: 8, CompletedCredits: 8, IsCompleted: true,
		CompletedCourseList:  []types.CourseRef{},
		EnrolledCourseList:   []types.CourseRef{{CourseID: "G2", CourseName: "艺术史", Credits: 2}},
		IncompleteCourseList: []types.CourseRef{{CourseID: "G9", CourseName: "隐藏课程", Credits: 2}},
	}
	report := &types.Report{
		Student: types.StudentInfo{StudentID: "2021010001", Name: "张三", TotalCredits: 160, CompletedCredits: 120.5},
		Summary: types.Summary{TotalRequired: 160, TotalCompleted: 120.5, TotalRemaining: 39.5, CompletionRate: 75.31},
		Categories: []types.CategoryRollup{
			{Kind: types.KindRequired, Label: "必修", Groups: []types.GroupAnalysis{math}, TotalRequired: 9, TotalCompleted: 5},
			{Kind: types.KindOptional, Label: "任选", Groups: []types.GroupAnalysis{general}, TotalRequired: 8, TotalCompleted: 8},
		},
		IncompleteGroups: []types.GroupAnalysis{math},
		GeneratedAt:      testTime,
	}
	recs := []types.Recommendation{{
		GroupName: "数学", CategoryLabel: "必修", Kind: types.KindRequired, Priority: 109,
		RemainingCredits: 4, RemainingCourses: 1,
		Suggestions: []types.Suggestion{{
			Kind:    types.SuggestionSpecific,
			Message: "还需完成以下课程（4学分）：",
			Courses: []types.CourseRef{{CourseID: "M2", CourseName: "线性代数", Credits: 4,
				Rating: &types.RatingNote{Rating: 4.3, CommentCount: 8}}},
		}},
	}}
	return report, recs
}

func utcOptions() Options {
	return Options{Location: time.UTC}
}

func TestRender_JSON(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatJSON, report, recs, utcOptions())
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "report")
	assert.Contains(t, decoded, "recommendations")
	assert.Contains(t, string(out), `"student_id": "2021010001"`)
	assert.Contains(t, string(out), `"priority": 109`)
}

func TestRender_JSONNilRecommendations(t *testing.T) {
	report, _ := testReport()

	out, err := Render(FormatJSON, report, nil, utcOptions())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"recommendations": []`)
}

func TestRender_YAMLUsesJSONKeys(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatYAML, report, recs, utcOptions())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	rep, ok := doc["report"].(map[string]any)
	require.True(t, ok)
	student, ok := rep["student"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2021010001", student["student_id"])
}

func TestRender_Text(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatText, report, recs, utcOptions())
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, ReportTitle)
	assert.Contains(t, text, "学号: 2021010001")
	assert.Contains(t, text, "生成时间: 2026/3/1 09:30:00")
	assert.Contains(t, text, "完成率: 75.31%")
	assert.Contains(t, text, "【必修课程】")
	assert.Contains(t, text, "【限选课程】")
	assert.Contains(t, text, "已完成课程组: 0/1")
	assert.Contains(t, text, "课程组: 数学 (必修)")
	assert.Contains(t, text, "[M1] 微积分 (5学分) - 成绩: A")
	assert.Contains(t, text, "未修课程:")
	assert.Contains(t, text, "正在选修:")
	assert.Contains(t, text, "完成状态: ✓ 已完成")
	assert.Contains(t, text, "1. 数学")
	assert.Contains(t, text, "还需完成以下课程（4学分）：")
	assert.Contains(t, text, "⭐ 4.3 (8条评价)")
	// pending list hidden for general-education groups
	assert.NotContains(t, text, "隐藏课程")
}

func TestRender_TextWithoutRecommendations(t *testing.T) {
	report, _ := testReport()

	out, err := Render(FormatText, report, nil, utcOptions())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "学习建议")
}

func TestRender_Markdown(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatMarkdown, report, recs, utcOptions())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# "+ReportTitle))
	assert.Contains(t, md, "| 完成率 | 75.31% |")
	assert.Contains(t, md, "| 必修课程 | 9 | 5 | 4 | 1 | 0/1 |")
	assert.Contains(t, md, "| 任选课程 | 8 | 8 | 0 | 1 | 1/1 |")
	assert.Contains(t, md, "### 数学 (必修)")
	assert.Contains(t, md, "## 学习建议（按优先级排序）")
	assert.Contains(t, md, "### 1. 数学")
	assert.Contains(t, md, "- [M2] 线性代数 (4学分)")
	assert.NotContains(t, md, "隐藏课程")
}

func TestRender_CSV(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatCSV, report, recs, utcOptions())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "\uFEFF"))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(out), "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"课程组", "课程类型", "应修学分", "已修学分", "剩余学分", "应修门数", "已修门数", "完成状态"}, records[0])
	assert.Equal(t, []string{"数学", "必修", "9", "5", "4", "2", "1", "否"}, records[1])
	assert.Equal(t, "是", records[2][7])
}

func TestRender_PDF(t *testing.T) {
	report, recs := testReport()

	out, err := Render(FormatPDF, report, recs, utcOptions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestRender_PDFMissingFont(t *testing.T) {
	report, recs := testReport()

	_, err := Render(FormatPDF, report, recs, Options{FontPath: "/nonexistent/font.ttf"})
	require.Error(t, err)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, FormatPDF, renderErr.Format)
	assert.Contains(t, err.Error(), "pdf export: failed to load font /nonexistent/font.ttf")
}

func TestRender_TemplateOverride(t *testing.T) {
	report, recs := testReport()
	path := filepath.Join(t.TempDir(), "custom.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Student.Name}}:{{len .Recommendations}}:{{num .Summary.CompletionRate}}"), 0644))

	out, err := Render(FormatText, report, recs, Options{TemplatePath: path})
	require.NoError(t, err)
	assert.Equal(t, "张三:1:75.31", string(out))
}

func TestRender_TemplateErrors(t *testing.T) {
	report, recs := testReport()
	badPath := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(badPath, []byte("{{.Nope{{}}"), 0644))
	execPath := filepath.Join(t.TempDir(), "exec.tmpl")
	require.NoError(t, os.WriteFile(execPath, []byte("{{.Student.Missing}}"), 0644))

	tests := []struct {
		name     string
		format   Format
		path     string
		contains string
	}{
		{"missing file", FormatMarkdown, "/nonexistent/template.tmpl", "md template /nonexistent/template.tmpl: template file not found"},
		{"parse failure", FormatText, badPath, "txt template " + badPath + ": failed to parse template"},
		{"execute failure", FormatText, execPath, "txt template " + execPath + ": failed to execute template"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.format, report, recs, Options{TemplatePath: tt.path})
			var templateErr *TemplateError
			require.ErrorAs(t, err, &templateErr)
			assert.Equal(t, tt.format, templateErr.Format)
			assert.Equal(t, tt.path, templateErr.Path)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	report, _ := testReport()

	tests := []struct {
		name        string
		format      Format
		report      *types.Report
		contains    string
		unsupported bool
	}{
		{"nil report", FormatJSON, nil, "json export: report is nil", false},
		{"unknown format", Format("docx"), report, "docx export: no renderer: unsupported export format", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.format, tt.report, nil, Options{})
			var renderErr *RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, tt.format, renderErr.Format)
			assert.Equal(t, tt.contains, err.Error())
			assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupportedFormat))
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"YAML", FormatYAML},
		{"yml", FormatYAML},
		{"text", FormatText},
		{"txt", FormatText},
		{"markdown", FormatMarkdown},
		{" md ", FormatMarkdown},
		{"csv", FormatCSV},
		{"pdf", FormatPDF},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseFormat("docx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, `unsupported export format: "docx" (use one of json, yaml, txt, md, csv, pdf)`, err.Error())
}

func TestFormat_Metadata(t *testing.T) {
	assert.Equal(t, ".md", FormatMarkdown.Extension())
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestDefaultFilename(t *testing.T) {
	assert.Equal(t, "培养方案报告_2021010001_2026-03-01", DefaultFilename("2021010001", testTime))
	assert.Equal(t, "培养方案报告_unknown_2026-03-01", DefaultFilename("", testTime))
}

func TestGroupDataset(t *testing.T) {
	report, _ := testReport()
	ds := GroupDataset(report)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "数学", ds.Rows[0]["课程组"])
	assert.Equal(t, "4", ds.Rows[0]["剩余学分"])
}

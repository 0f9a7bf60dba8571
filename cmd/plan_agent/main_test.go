package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/plan-auditor/internal/crawling"
	"github.com/jonathan/plan-auditor/internal/rendering"
	"github.com/jonathan/plan-auditor/internal/types"
)

const planHTML = `<html><body>
<div>学号：2021010001 姓名：张三 应完成总学分：160 方案内实际完成总学分：120.5</div>
<table>
  <tr><th>课程属性</th><th>课组名</th><th>课程号</th><th>课程名</th><th>学分</th><th>成绩</th><th>绩点</th>
      <th>应修学分</th><th>完成学分</th><th>应修门数</th><th>完成门数</th><th>是否完成</th></tr>
  <tr><td rowspan="2">必修</td><td rowspan="2">数学</td>
      <td>M1</td><td>微积分</td><td>5</td><td>A</td><td>4.0</td>
      <td rowspan="2">9</td><td rowspan="2">5</td><td rowspan="2">2</td><td rowspan="2">1</td><td rowspan="2">否</td></tr>
  <tr><td>M2</td><td>线性代数</td><td>4</td><td>未修</td><td></td></tr>
</table>
</body></html>`

// workspace moves the test into a fresh directory with no config file and
// clears environment overrides that would reach real services.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"PLAN_DATABASE_URL", "PLAN_REDIS_ADDR", "PLAN_FETCH_COOKIES", "PLAN_VERBOSE", "PLAN_REVIEWS_RATINGS_FILE"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the CLI in-process and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	dir := workspace(t)
	in := writeFile(t, filepath.Join(dir, "plan.html"), planHTML)
	outDir := filepath.Join(dir, "reports")

	out, err := execute(t, "analyze", "--in", in, "--format", "json,md", "--out", outDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Student: 2021010001 张三")
	assert.Contains(t, out, "Completion: 75.31% (120.5 of 160 credits, 39.5 remaining)")
	assert.Contains(t, out, "Incomplete groups: 1")
	assert.Contains(t, out, "数学  priority 109, 4 credits / 1 courses left")
	assert.NotContains(t, out, "Run ID")

	jsonFiles, err := filepath.Glob(filepath.Join(outDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, jsonFiles, 1)
	mdFiles, err := filepath.Glob(filepath.Join(outDir, "*.md"))
	require.NoError(t, err)
	assert.Len(t, mdFiles, 1)
}

func TestAnalyzeCommand_JSONWithRatings(t *testing.T) {
	dir := workspace(t)
	in := writeFile(t, filepath.Join(dir, "plan.html"), planHTML)
	ratings := writeFile(t, filepath.Join(dir, "ratings.json"), `{
  "courses": [{"course_id": "M2", "course_name": "线性代数", "teacher": "王老师", "rating": 4.6, "comment_count": 31}],
  "total_count": 31,
  "updated_at": "2026-03-01T00:00:00Z"
}`)

	out, err := execute(t, "analyze", "-i", in, "--json", "--ratings", ratings, "-o", filepath.Join(dir, "out"))
	require.NoError(t, err, out)

	var doc jsonOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.False(t, doc.Empty)
	assert.Equal(t, "2021010001", doc.Report.Student.StudentID)
	// json and txt are the configured default formats
	assert.Len(t, doc.Files, 2)

	require.Len(t, doc.Recommendations, 1)
	rec := doc.Recommendations[0]
	assert.Equal(t, 109, rec.Priority)
	require.NotEmpty(t, rec.Suggestions)
	require.NotEmpty(t, rec.Suggestions[0].Courses)
	note := rec.Suggestions[0].Courses[0].Rating
	require.NotNil(t, note)
	assert.Equal(t, 4.6, note.Rating)
	assert.Equal(t, "王老师", note.Teacher)
}

func TestAnalyzeCommand_EmptyPage(t *testing.T) {
	dir := workspace(t)
	in := writeFile(t, filepath.Join(dir, "login.html"), `<html><body><form>登录</form></body></html>`)

	out, err := execute(t, "analyze", "-i", in, "-f", "txt", "-o", filepath.Join(dir, "out"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "No plan table found")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing input flag", []string{"analyze"}, `required flag(s) "in" not set`},
		{"missing file", []string{"analyze", "-i", "nope.html"}, "failed to read plan page"},
		{"unknown format", []string{"analyze", "-i", "plan.html", "-f", "docx"}, "unsupported export format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := workspace(t)
			writeFile(t, filepath.Join(dir, "plan.html"), planHTML)

			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnalyzeCommand_ConfigFile(t *testing.T) {
	dir := workspace(t)
	in := writeFile(t, filepath.Join(dir, "plan.html"), planHTML)
	cfgPath := writeFile(t, filepath.Join(dir, "plan_auditor.yaml"), `
export:
  formats: [csv]
  output_dir: from-config
`)

	out, err := execute(t, "--config", cfgPath, "analyze", "-i", in)
	require.NoError(t, err, out)

	files, err := filepath.Glob(filepath.Join(dir, "from-config", "*"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".csv", filepath.Ext(files[0]))
}

func TestExportCommand(t *testing.T) {
	dir := workspace(t)
	in := writeFile(t, filepath.Join(dir, "plan.html"), planHTML)
	_, err := execute(t, "analyze", "-i", in, "-f", "json", "-o", filepath.Join(dir, "first"))
	require.NoError(t, err)

	exports, err := filepath.Glob(filepath.Join(dir, "first", "*.json"))
	require.NoError(t, err)
	require.Len(t, exports, 1)

	out, err := execute(t, "export", "--in", exports[0], "-f", "yaml,csv", "-o", filepath.Join(dir, "second"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote")

	for _, ext := range []string{".yaml", ".csv"} {
		matches, err := filepath.Glob(filepath.Join(dir, "second", "*"+ext))
		require.NoError(t, err)
		assert.Len(t, matches, 1, ext)
	}
}

func TestExportCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no source", []string{"export"}, "exactly one of --in or --run-id"},
		{"both sources", []string{"export", "--in", "a.json", "--run-id", "x"}, "exactly one of --in or --run-id"},
		{"run without database", []string{"export", "--run-id", "6f1c2f1e-5a0e-4c55-9a5c-0d3c4e2b9a10"}, "needs database.url"},
		{"bad run id", []string{"export", "--run-id", "x"}, "invalid run ID"},
		{"no report", []string{"export", "--in", "empty.json"}, "has no report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := workspace(t)
			writeFile(t, filepath.Join(dir, "empty.json"), `{"recommendations": []}`)

			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		content  string
		wantErr  bool
		wantText string
	}{
		{
			name:     "valid ratings",
			schema:   "ratings",
			content:  `{"courses": [{"course_id": "1", "course_name": "x", "rating": 4, "comment_count": 1}], "total_count": 1, "updated_at": "2026-01-01T00:00:00Z"}`,
			wantText: "Validation passed",
		},
		{
			name:     "rating out of range",
			schema:   "ratings.schema.json",
			content:  `{"courses": [{"course_id": "1", "course_name": "x", "rating": 7, "comment_count": 1}], "total_count": 1, "updated_at": "2026-01-01T00:00:00Z"}`,
			wantErr:  true,
			wantText: "Validation failed",
		},
		{
			name:     "empty recommendations",
			schema:   "recommendations",
			content:  `[]`,
			wantText: "Validation passed",
		},
		{
			name:    "unknown schema",
			schema:  "bogus",
			content: `{}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := workspace(t)
			path := writeFile(t, filepath.Join(dir, "doc.json"), tt.content)

			out, err := execute(t, "validate", "--schema", tt.schema, "--json", path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out, tt.wantText)
		})
	}
}

func TestCrawlReviewsCommand(t *testing.T) {
	dir := workspace(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page := types.ReviewPage{Count: 3, Results: []types.Review{
			{Course: types.ReviewCourse{ID: "M2", Name: "线性代数", Teacher: "王老师"}, Rating: 5, Comment: "好"},
			{Course: types.ReviewCourse{ID: "M2", Name: "线性代数", Teacher: "王老师"}, Rating: 4, Comment: "难"},
			{Course: types.ReviewCourse{ID: "P1", Name: "大学物理", Teacher: "赵老师"}, Rating: 3, Comment: "一般"},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(api.Close)

	t.Setenv("PLAN_REVIEWS_API_URL", api.URL+"/api/review/")
	t.Setenv("PLAN_REVIEWS_REQUEST_DELAY", "0s")
	t.Setenv("PLAN_REVIEWS_RETRY_DELAY", "0s")
	path := filepath.Join(dir, "ratings.yaml")

	out, err := execute(t, "crawl-reviews", "--out", path, "--no-db")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved ratings for 2 courses (3 reviews)")

	out, err = execute(t, "validate", "--schema", "ratings", "--json", writeRatingsJSON(t, path))
	require.NoError(t, err, out)

	out, err = execute(t, "crawl-reviews", "--out", path, "--no-db")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ratings are up to date (3 reviews, 2 courses)")
}

// writeRatingsJSON re-encodes a YAML snapshot as JSON for schema validation.
func writeRatingsJSON(t *testing.T, yamlPath string) string {
	t.Helper()
	set, err := crawling.LoadRatings(yamlPath)
	require.NoError(t, err)
	data, err := json.Marshal(set)
	require.NoError(t, err)
	return writeFile(t, yamlPath+".json", string(data))
}

func TestFetchCommand_NeedsCredentials(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no cookies", []string{"fetch"}, "no session cookies"},
		{"browser without login", []string{"fetch", "--use-browser"}, "needs fetch.username and fetch.password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			t.Setenv("PLAN_FETCH_USERNAME", "")
			t.Setenv("PLAN_FETCH_PASSWORD", "")
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []rendering.Format
		wantErr bool
	}{
		{"empty", nil, []rendering.Format{}, false},
		{"aliases and duplicates", []string{"markdown", "md", "text", "yml"}, []rendering.Format{rendering.FormatMarkdown, rendering.FormatText, rendering.FormatYAML}, false},
		{"unknown", []string{"json", "docx"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFormats(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

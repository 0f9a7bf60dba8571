package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlanHTML = `<html><body>
<div>学号：2021010001 姓名：张三 应完成总学分：160 方案内实际完成总学分：120.5</div>
<table id="layout"><tr><td>
  <table id="plan">
    <tr><th>课程属性</th><th>课组名</th><th>课程号</th><th>课程名</th><th>学分</th><th>成绩</th><th>绩点</th>
        <th>应修学分</th><th>完成学分</th><th>应修门数</th><th>完成门数</th><th>是否完成</th></tr>
    <tr><td rowspan="2">必修</td><td rowspan="2">数学</td>
        <td>M1</td><td>微积分</td><td>5</td><td>A</td><td>4.0</td>
        <td rowspan="2">9</td><td rowspan="2">5</td><td rowspan="2">2</td><td rowspan="2">1</td><td rowspan="2">否</td></tr>
    <tr><td>M2</td><td><font color="#0000FF">线性代数</font></td><td>4</td><td>未修</td><td></td></tr>
  </table>
</td></tr></table>
</body></html>`

func TestParseDocument_FindsInnermostTable(t *testing.T) {
	doc, err := ParseDocument(samplePlanHTML)
	require.NoError(t, err)
	require.True(t, doc.TableFound)
	require.Len(t, doc.Rows, 3)

	assert.Len(t, doc.Rows[0], 12)
	assert.Equal(t, "课程属性", doc.Rows[0][0].Text)

	assert.Equal(t, 2, doc.Rows[1][0].RowSpan)
	assert.Equal(t, 1, doc.Rows[1][2].RowSpan)

	require.Len(t, doc.Rows[2], 5)
	assert.Equal(t, "#0000FF", doc.Rows[2][1].Color)
	assert.Equal(t, "线性代数", doc.Rows[2][1].Text)
}

func TestParseDocument_StudentInfo(t *testing.T) {
	doc, err := ParseDocument(samplePlanHTML)
	require.NoError(t, err)

	assert.Equal(t, "2021010001", doc.Student.StudentID)
	assert.Equal(t, "张三", doc.Student.Name)
	assert.Equal(t, 160.0, doc.Student.TotalCredits)
	assert.Equal(t, 120.5, doc.Student.CompletedCredits)
}

func TestParseDocument_DecodesThroughGrid(t *testing.T) {
	doc, err := ParseDocument(samplePlanHTML)
	require.NoError(t, err)

	out := DecodeGrid(doc.Rows)
	require.Len(t, out.Rows, 2)
	require.NotNil(t, out.Rows[1].Course)
	assert.True(t, out.Rows[1].Course.IsOutOfPlan)
	assert.Equal(t, 9.0, out.Rows[0].Group.Stats.RequiredCredits)
}

func TestParseDocument_NoTable(t *testing.T) {
	doc, err := ParseDocument(`<html><body><p>学号: 2020000001</p><table><tr><td>其他</td></tr></table></body></html>`)
	require.NoError(t, err)
	assert.False(t, doc.TableFound)
	assert.Empty(t, doc.Rows)
	assert.Equal(t, "2020000001", doc.Student.StudentID)
}

func TestExtractStudentInfo(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		id        string
		student   string
		total     float64
		completed float64
	}{
		{
			name:      "full-width colons",
			text:      "学号：2019011234 姓名：李四,应完成总学分：155方案内实际完成总学分：88.5",
			id:        "2019011234",
			student:   "李四",
			total:     155,
			completed: 88.5,
		},
		{
			name:    "ascii colons and spaces",
			text:    "学号: 123 姓名: Wang&nbsp;",
			id:      "123",
			student: "Wang",
		},
		{
			name: "nothing found",
			text: "培养方案完成情况",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractStudentInfo(tt.text)
			assert.Equal(t, tt.id, info.StudentID)
			assert.Equal(t, tt.student, info.Name)
			assert.Equal(t, tt.total, info.TotalCredits)
			assert.Equal(t, tt.completed, info.CompletedCredits)
		})
	}
}

func TestParseRowSpan(t *testing.T) {
	assert.Equal(t, 1, parseRowSpan(""))
	assert.Equal(t, 1, parseRowSpan("abc"))
	assert.Equal(t, 1, parseRowSpan("0"))
	assert.Equal(t, 3, parseRowSpan(" 3 "))
}

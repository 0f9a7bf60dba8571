package rendering

import (
	"strconv"

	"github.com/jonathan/plan-auditor/internal/types"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Group table columns
const (
	colGroup            = "课程组"
	colCategory         = "课程类型"
	colRequiredCredits  = "应修学分"
	colCompletedCredits = "已修学分"
	colRemainingCredits = "剩余学分"
	colRequiredCourses  = "应修门数"
	colCompletedCourses = "已修门数"
	colStatus           = "完成状态"
)

// GroupDataset lays out one row per group, in category order.
func GroupDataset(report *types.Report) Dataset {
	ds := Dataset{
		Headers: []string{
			colGroup, colCategory, colRequiredCredits, colCompletedCredits,
			colRemainingCredits, colRequiredCourses, colCompletedCourses, colStatus,
		},
	}

	for _, g := range report.AllGroups() {
		status := "否"
		if g.IsCompleted {
			status = "是"
		}
		ds.Rows = append(ds.Rows, map[string]string{
			colGroup:            g.GroupName,
			colCategory:         g.CategoryLabel,
			colRequiredCredits:  types.FormatNumber(g.RequiredCredits),
			colCompletedCredits: types.FormatNumber(g.CompletedCredits),
			colRemainingCredits: types.FormatNumber(g.RemainingCredits),
			colRequiredCourses:  strconv.Itoa(g.RequiredCourses),
			colCompletedCourses: strconv.Itoa(g.CompletedCourses),
			colStatus:           status,
		})
	}
	return ds
}

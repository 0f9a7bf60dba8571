package parsing

import (
	"regexp"
	"strings"

	"github.com/jonathan/plan-auditor/internal/types"
)

// OutOfPlanColor is the font color the registrar uses for courses outside the plan
const OutOfPlanColor = "#0000FF"

var letterGrade = regexp.MustCompile(`^[A-D][+-]?$`)

// ClassifyGrade maps a cleaned grade cell to a course status. Rules are
// checked in order and the first match wins.
func ClassifyGrade(grade string) types.Status {
	switch {
	case strings.Contains(grade, "未修"):
		return types.StatusNotTaken
	case strings.Contains(grade, "选课"):
		return types.StatusEnrolled
	case grade == "W":
		return types.StatusWithdrawn
	case grade == "F":
		return types.StatusFailed
	case grade == "P" || letterGrade.MatchString(grade):
		return types.StatusCompleted
	case strings.TrimSpace(grade) != "":
		// numeric and other non-empty grades count as passed
		return types.StatusCompleted
	}
	return types.StatusUnknown
}

// IsOutOfPlan reports whether a name cell's color marks the course as outside the plan.
func IsOutOfPlan(color string) bool {
	return strings.EqualFold(strings.TrimSpace(color), OutOfPlanColor)
}

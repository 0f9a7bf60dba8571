package analysis

import (
	"math"
	"time"

	"github.com/jonathan/plan-auditor/internal/types"
)

// Aggregate rolls a plan up into a report. Categories without a kind are
// left out. The overall summary uses the student's declared totals.
func Aggregate(plan types.Plan, generatedAt time.Time) *types.Report {
	report := &types.Report{
		Student:          plan.Student,
		Summary:          summarize(plan.Student),
		Categories:       []types.CategoryRollup{},
		IncompleteGroups: []types.GroupAnalysis{},
		GeneratedAt:      generatedAt,
	}

	for _, cat := range plan.Categories {
		if cat.Kind == "" {
			continue
		}
		rollup := types.CategoryRollup{
			Kind:   cat.Kind,
			Label:  cat.Label,
			Groups: make([]types.GroupAnalysis, 0, len(cat.Groups)),
		}
		for _, g := range cat.Groups {
			ga := AnalyzeGroup(g, cat)
			rollup.Groups = append(rollup.Groups, ga)
			rollup.TotalRequired += ga.RequiredCredits
			rollup.TotalCompleted += ga.CompletedCredits

			if !ga.IsCompleted && ga.RequiredCredits > 0 {
				report.IncompleteGroups = append(report.IncompleteGroups, ga)
			}
		}
		report.Categories = append(report.Categories, rollup)
	}

	return report
}

// AnalyzeGroup derives remaining figures and course lists for a group.
func AnalyzeGroup(g types.Group, cat types.Category) types.GroupAnalysis {
	ga := types.GroupAnalysis{
		GroupName:            g.Name,
		CategoryLabel:        cat.Label,
		Kind:                 cat.Kind,
		RequiredCredits:      g.Stats.RequiredCredits,
		CompletedCredits:     g.Stats.CompletedCredits,
		RequiredCourses:      g.Stats.RequiredCourses,
		CompletedCourses:     g.Stats.CompletedCourses,
		IsCompleted:          g.Stats.IsCompleted,
		RemainingCredits:     math.Max(0, g.Stats.RequiredCredits-g.Stats.CompletedCredits),
		RemainingCourses:     max(0, g.Stats.RequiredCourses-g.Stats.CompletedCourses),
		CompletedCourseList:  []types.CourseRef{},
		EnrolledCourseList:   []types.CourseRef{},
		IncompleteCourseList: []types.CourseRef{},
	}

	for _, c := range g.Courses {
		switch {
		case c.Status == types.StatusCompleted && !c.IsOutOfPlan:
			ga.CompletedCourseList = append(ga.CompletedCourseList, types.RefFor(c))
		case c.Status == types.StatusEnrolled:
			ga.EnrolledCourseList = append(ga.EnrolledCourseList, types.RefFor(c))
		case c.Status == types.StatusNotTaken:
			ga.IncompleteCourseList = append(ga.IncompleteCourseList, types.RefFor(c))
		}
	}

	return ga
}

func summarize(student types.StudentInfo) types.Summary {
	s := types.Summary{
		TotalRequired:  student.TotalCredits,
		TotalCompleted: student.CompletedCredits,
		TotalRemaining: math.Max(0, student.TotalCredits-student.CompletedCredits),
	}
	if s.TotalRequired > 0 {
		s.CompletionRate = Round2(s.TotalCompleted / s.TotalRequired * 100)
	}
	return s
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package ranking turns incomplete requirement groups into a prioritized remediation plan.
package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/jonathan/plan-auditor/internal/types"
)

// Priority weights
const (
	requiredBonus      = 100
	electiveBonus      = 50
	optionalBonus      = 0
	remainingCourseWgt = 5
)

// Recommend builds one recommendation per incomplete group, sorted by
// priority with ties kept in report order.
func Recommend(report *types.Report) []types.Recommendation {
	if report == nil {
		return []types.Recommendation{}
	}

	recs := make([]types.Recommendation, 0, len(report.IncompleteGroups))
	for _, g := range report.IncompleteGroups {
		recs = append(recs, types.Recommendation{
			GroupName:        g.GroupName,
			CategoryLabel:    g.CategoryLabel,
			Kind:             g.Kind,
			Priority:         Priority(g),
			RemainingCredits: g.RemainingCredits,
			RemainingCourses: g.RemainingCourses,
			Suggestions:      suggestionsFor(g),
		})
	}

	// Sort by priority (descending)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})

	return recs
}

// Priority scores a group by category kind, remaining credits and remaining courses.
func Priority(g types.GroupAnalysis) int {
	score := float64(kindBonus(g.Kind)) + g.RemainingCredits + float64(g.RemainingCourses*remainingCourseWgt)
	return int(math.Round(score))
}

func kindBonus(kind types.CategoryKind) int {
	switch kind {
	case types.KindRequired:
		return requiredBonus
	case types.KindElective:
		return electiveBonus
	}
	return optionalBonus
}

func suggestionsFor(g types.GroupAnalysis) []types.Suggestion {
	remaining := types.FormatNumber(g.RemainingCredits)
	pending := append([]types.CourseRef(nil), g.IncompleteCourseList...)

	switch g.Kind {
	case types.KindRequired:
		if len(pending) > 0 {
			return []types.Suggestion{specific(fmt.Sprintf("还需完成以下课程（%s学分）：", remaining), pending)}
		}
		return []types.Suggestion{general(fmt.Sprintf("还需完成%s学分", remaining))}
	case types.KindElective:
		if len(pending) > 0 {
			return []types.Suggestion{specific(fmt.Sprintf("建议从以下课程中选修（还需%s学分）：", remaining), pending)}
		}
		return []types.Suggestion{general(fmt.Sprintf("还需在该课组中选修%s学分", remaining))}
	}
	return []types.Suggestion{general(fmt.Sprintf("还需选修%s学分", remaining))}
}

func specific(msg string, courses []types.CourseRef) types.Suggestion {
	return types.Suggestion{Kind: types.SuggestionSpecific, Message: msg, Courses: courses}
}

func general(msg string) types.Suggestion {
	return types.Suggestion{Kind: types.SuggestionGeneral, Message: msg, Courses: []types.CourseRef{}}
}

// Package analysis assembles decoded rows into a plan hierarchy and rolls it
// up into a completion report.
package analysis

import (
	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/types"
)

// BuildStats counts rows that could not be attached to the hierarchy.
type BuildStats struct {
	OrphanGroups    int `json:"orphan_groups"`
	OrphanCourses   int `json:"orphan_courses"`
	UnkindedGroups  int `json:"unkinded_groups"`
	ExtraCategories int `json:"extra_categories"`
}

// KindForPosition returns the kind of the category at the given position.
// Only the first three categories have a kind.
func KindForPosition(i int) (types.CategoryKind, bool) {
	if i < 0 || i >= len(types.CategoryKinds) {
		return "", false
	}
	return types.CategoryKinds[i], true
}

// BuildPlan assembles decoded rows into categories and groups in document
// order, assigns category kinds by position and reconciles every group.
// The decoded rows are not modified.
func BuildPlan(student types.StudentInfo, decoded parsing.Decoded) (types.Plan, BuildStats) {
	var (
		stats      BuildStats
		categories []types.Category
		catIdx     = -1
		grpIdx     = -1
		grpCat     = -1
	)

	for _, row := range decoded.Rows {
		if row.Decorative {
			continue
		}

		if row.Category != nil {
			categories = append(categories, types.Category{Label: row.Category.Label})
			catIdx = len(categories) - 1
		}

		if row.Group != nil {
			if catIdx < 0 {
				stats.OrphanGroups++
				grpIdx, grpCat = -1, -1
			} else {
				cat := &categories[catIdx]
				cat.Groups = append(cat.Groups, types.Group{
					Name:  row.Group.Name,
					Stats: row.Group.Stats,
				})
				grpCat, grpIdx = catIdx, len(cat.Groups)-1
			}
		}

		if row.Course != nil {
			if grpIdx < 0 {
				stats.OrphanCourses++
				continue
			}
			// A new category without a new group keeps filling the open group.
			g := &categories[grpCat].Groups[grpIdx]
			g.Courses = append(g.Courses, *row.Course)
		}
	}

	for i := range categories {
		if kind, ok := KindForPosition(i); ok {
			categories[i].Kind = kind
		} else {
			stats.ExtraCategories++
			stats.UnkindedGroups += len(categories[i].Groups)
		}
	}

	return ReconcilePlan(types.Plan{Student: student, Categories: categories}), stats
}

// ReconcileGroup recomputes completed credits and courses from the group's
// course records and returns an updated copy. Declared requirements are kept.
func ReconcileGroup(g types.Group) types.Group {
	var credits float64
	var count int
	for _, c := range g.Courses {
		if c.Status == types.StatusCompleted {
			credits += c.Credits
			count++
		}
	}

	out := g
	out.Courses = append([]types.CourseRecord(nil), g.Courses...)
	out.Stats.CompletedCredits = credits
	out.Stats.CompletedCourses = count
	out.Stats.IsCompleted = credits >= g.Stats.RequiredCredits
	return out
}

// ReconcilePlan reconciles every group of a plan and returns a copy.
func ReconcilePlan(p types.Plan) types.Plan {
	out := types.Plan{Student: p.Student}
	for _, c := range p.Categories {
		var groups []types.Group
		for _, g := range c.Groups {
			groups = append(groups, ReconcileGroup(g))
		}
		out.Categories = append(out.Categories, types.Category{Label: c.Label, Kind: c.Kind, Groups: groups})
	}
	return out
}

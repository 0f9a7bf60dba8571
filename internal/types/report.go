package types

import "time"

// CourseRef is the course view carried in reports and suggestions.
type CourseRef struct {
	CourseID   string      `json:"course_id"`
	CourseName string      `json:"course_name"`
	Credits    float64     `json:"credits"`
	Grade      string      `json:"grade,omitempty"`
	GPA        float64     `json:"gpa,omitempty"`
	Rating     *RatingNote `json:"rating,omitempty"`
}

// RefFor builds a CourseRef from a course record.
func RefFor(c CourseRecord) CourseRef {
	return CourseRef{
		CourseID:   c.CourseID,
		CourseName: c.CourseName,
		Credits:    c.Credits,
		Grade:      c.Grade,
		GPA:        c.GPA,
	}
}

// Summary is the overall completion picture.
type Summary struct {
	TotalRequired  float64 `json:"total_required"`
	TotalCompleted float64 `json:"total_completed"`
	TotalRemaining float64 `json:"total_remaining"`
	CompletionRate float64 `json:"completion_rate"`
}

// GroupAnalysis is the per-group row of a report.
type GroupAnalysis struct {
	GroupName            string       `json:"group_name"`
	CategoryLabel        string       `json:"category_label"`
	Kind                 CategoryKind `json:"kind"`
	RequiredCredits      float64      `json:"required_credits"`
	CompletedCredits     float64      `json:"completed_credits"`
	RequiredCourses      int          `json:"required_courses"`
	CompletedCourses     int          `json:"completed_courses"`
	IsCompleted          bool         `json:"is_completed"`
	RemainingCredits     float64      `json:"remaining_credits"`
	RemainingCourses     int          `json:"remaining_courses"`
	CompletedCourseList  []CourseRef  `json:"completed_course_list"`
	EnrolledCourseList   []CourseRef  `json:"enrolled_course_list"`
	IncompleteCourseList []CourseRef  `json:"incomplete_course_list"`
}

// CategoryRollup aggregates the groups of one category.
type CategoryRollup struct {
	Kind           CategoryKind    `json:"kind"`
	Label          string          `json:"label"`
	Groups         []GroupAnalysis `json:"groups"`
	TotalRequired  float64         `json:"total_required"`
	TotalCompleted float64         `json:"total_completed"`
}

// CompletedGroups counts groups marked complete.
func (c CategoryRollup) CompletedGroups() int {
	n := 0
	for _, g := range c.Groups {
		if g.IsCompleted {
			n++
		}
	}
	return n
}

// Remaining returns the credits still missing for the category, never below zero.
func (c CategoryRollup) Remaining() float64 {
	return max(0, c.TotalRequired-c.TotalCompleted)
}

// Report is the aggregated completion report.
type Report struct {
	Student          StudentInfo      `json:"student"`
	Summary          Summary          `json:"summary"`
	Categories       []CategoryRollup `json:"categories"`
	IncompleteGroups []GroupAnalysis  `json:"incomplete_groups"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// IsEmpty reports the soft-failure case where no table was decoded.
func (r *Report) IsEmpty() bool {
	return r == nil || len(r.Categories) == 0
}

// AllGroups returns every group in category order.
func (r *Report) AllGroups() []GroupAnalysis {
	var out []GroupAnalysis
	for _, c := range r.Categories {
		out = append(out, c.Groups...)
	}
	return out
}

// GroupByName returns the first group with the given name.
func (r *Report) GroupByName(name string) (GroupAnalysis, bool) {
	for _, c := range r.Categories {
		for _, g := range c.Groups {
			if g.GroupName == name {
				return g, true
			}
		}
	}
	return GroupAnalysis{}, false
}

// GroupsByKind returns the groups of every category with the given kind.
func (r *Report) GroupsByKind(kind CategoryKind) []GroupAnalysis {
	var out []GroupAnalysis
	for _, c := range r.Categories {
		if c.Kind == kind {
			out = append(out, c.Groups...)
		}
	}
	return out
}

// Rollup returns the category rollup for a kind.
func (r *Report) Rollup(kind CategoryKind) (CategoryRollup, bool) {
	for _, c := range r.Categories {
		if c.Kind == kind {
			return c, true
		}
	}
	return CategoryRollup{}, false
}

// Overview is the dashboard-sized digest of a report.
type Overview struct {
	Student             StudentInfo      `json:"student"`
	Summary             Summary          `json:"summary"`
	IncompleteCount     int              `json:"incomplete_count"`
	TopRecommendations  []Recommendation `json:"top_recommendations"`
	TotalRecommendation int              `json:"total_recommendations"`
}

// DefaultOverviewSize is the number of recommendations kept in an overview.
const DefaultOverviewSize = 5

// NewOverview builds an overview keeping at most n recommendations.
func NewOverview(r *Report, recs []Recommendation, n int) Overview {
	top := recs
	if n >= 0 && len(top) > n {
		top = top[:n]
	}
	return Overview{
		Student:             r.Student,
		Summary:             r.Summary,
		IncompleteCount:     len(r.IncompleteGroups),
		TopRecommendations:  top,
		TotalRecommendation: len(recs),
	}
}

// Package types provides type definitions for structured data used throughout the plan-auditor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Cell is a single table cell as read from the source document.
type Cell struct {
	Text    string `json:"text"`
	RowSpan int    `json:"row_span"`
	// Color is the font color attached to the cell content, empty when none
	Color string `json:"color,omitempty"`
}

// Span returns the effective row span. Missing or non-positive spans count as 1.
func (c Cell) Span() int {
	if c.RowSpan < 1 {
		return 1
	}
	return c.RowSpan
}

// Row is an ordered list of cells.
type Row []Cell

// Status is the completion status of a single course record.
type Status string

// Course statuses
const (
	StatusCompleted Status = "completed"
	StatusEnrolled  Status = "enrolled"
	StatusNotTaken  Status = "not_taken"
	StatusWithdrawn Status = "withdrawn"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// CategoryKind tags a top-level category.
type CategoryKind string

// Category kinds, in the order categories appear in the document
const (
	KindRequired CategoryKind = "required"
	KindElective CategoryKind = "elective"
	KindOptional CategoryKind = "optional"
)

// CategoryKinds lists kinds by category position.
var CategoryKinds = []CategoryKind{KindRequired, KindElective, KindOptional}

// ParseCategoryKind accepts either the English kind or its Chinese marker.
func ParseCategoryKind(s string) (CategoryKind, bool) {
	switch s {
	case string(KindRequired), "必修":
		return KindRequired, true
	case string(KindElective), "限选":
		return KindElective, true
	case string(KindOptional), "任选":
		return KindOptional, true
	}
	return "", false
}

// DisplayName returns the Chinese section title used in reports.
func (k CategoryKind) DisplayName() string {
	switch k {
	case KindRequired:
		return "必修课程"
	case KindElective:
		return "限选课程"
	case KindOptional:
		return "任选课程"
	}
	return string(k)
}

// CourseRecord is one row-level course entry.
type CourseRecord struct {
	CourseID    string  `json:"course_id"`
	CourseName  string  `json:"course_name"`
	Credits     float64 `json:"credits"`
	Grade       string  `json:"grade"`
	GPA         float64 `json:"gpa"`
	Status      Status  `json:"status"`
	IsOutOfPlan bool    `json:"is_out_of_plan"`
}

// GroupStats holds requirement and completion figures for a group.
// RequiredCredits and RequiredCourses come from the document; the completed
// figures are recomputed from course records.
type GroupStats struct {
	RequiredCredits  float64 `json:"required_credits"`
	CompletedCredits float64 `json:"completed_credits"`
	RequiredCourses  int     `json:"required_courses"`
	CompletedCourses int     `json:"completed_courses"`
	IsCompleted      bool    `json:"is_completed"`
}

// Group is a named requirement group within a category.
type Group struct {
	Name    string         `json:"name"`
	Courses []CourseRecord `json:"courses"`
	Stats   GroupStats     `json:"stats"`
}

// Category is a top-level division of the plan.
type Category struct {
	Label  string       `json:"label"`
	Kind   CategoryKind `json:"kind,omitempty"`
	Groups []Group      `json:"groups"`
}

// StudentInfo is the identity and declared totals found in the page text.
type StudentInfo struct {
	StudentID        string  `json:"student_id"`
	Name             string  `json:"name"`
	TotalCredits     float64 `json:"total_credits"`
	CompletedCredits float64 `json:"completed_credits"`
}

// Plan is the decoded hierarchy plus student identity.
type Plan struct {
	Student    StudentInfo `json:"student"`
	Categories []Category  `json:"categories"`
}

// IsEmpty reports whether no categories were decoded.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Categories) == 0
}

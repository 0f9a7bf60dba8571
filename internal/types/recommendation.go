package types

// SuggestionKind distinguishes course lists from credit-only advice.
type SuggestionKind string

// Suggestion kinds
const (
	SuggestionSpecific SuggestionKind = "specific"
	SuggestionGeneral  SuggestionKind = "general"
)

// Suggestion is one piece of advice attached to a recommendation.
type Suggestion struct {
	Kind    SuggestionKind `json:"kind"`
	Message string         `json:"message"`
	Courses []CourseRef    `json:"courses"`
}

// Recommendation is a ranked remediation entry for an incomplete group.
type Recommendation struct {
	GroupName        string       `json:"group_name"`
	CategoryLabel    string       `json:"category_label"`
	Kind             CategoryKind `json:"kind"`
	Priority         int          `json:"priority"`
	RemainingCredits float64      `json:"remaining_credits"`
	RemainingCourses int          `json:"remaining_courses"`
	Suggestions      []Suggestion `json:"suggestions"`
}

package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// CourseKey is a course identifier from the review API, which sends numbers
// for some courses and strings for others.
type CourseKey string

// UnmarshalJSON accepts both JSON strings and numbers.
func (k *CourseKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*k = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = CourseKey(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*k = CourseKey(n.String())
	return nil
}

// ReviewCourse is the course block embedded in a review.
type ReviewCourse struct {
	ID      CourseKey `json:"id"`
	Name    string    `json:"name"`
	Teacher string    `json:"teacher"`
}

// Review is a single course review from the rating site.
type Review struct {
	Course  ReviewCourse `json:"course"`
	Rating  float64      `json:"rating"`
	Comment string       `json:"comment"`
}

// ReviewPage is one page of the review listing API.
type ReviewPage struct {
	Count   int      `json:"count"`
	Results []Review `json:"results"`
	Detail  string   `json:"detail,omitempty"`
}

// CourseRating is the running average of reviews for one course.
type CourseRating struct {
	CourseID     string   `json:"course_id" yaml:"course_id"`
	CourseName   string   `json:"course_name" yaml:"course_name"`
	Teacher      string   `json:"teacher" yaml:"teacher"`
	Rating       float64  `json:"rating" yaml:"rating"`
	CommentCount int      `json:"comment_count" yaml:"comment_count"`
	Comments     []string `json:"comments" yaml:"comments"`
}

// RatingSet is the locally stored rating snapshot.
type RatingSet struct {
	Courses    []CourseRating `json:"courses" yaml:"courses"`
	TotalCount int            `json:"total_count" yaml:"total_count"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Lookup finds a rating by course id, then by name containment in either
// direction.
func (s *RatingSet) Lookup(courseID, courseName string) (CourseRating, bool) {
	if s == nil {
		return CourseRating{}, false
	}
	if courseID != "" {
		for _, c := range s.Courses {
			if c.CourseID == courseID {
				return c, true
			}
		}
	}
	if courseName == "" {
		return CourseRating{}, false
	}
	for _, c := range s.Courses {
		if c.CourseName == "" {
			continue
		}
		if strings.Contains(c.CourseName, courseName) || strings.Contains(courseName, c.CourseName) {
			return c, true
		}
	}
	return CourseRating{}, false
}

// RatingNote is the rating summary attached to a suggested course.
type RatingNote struct {
	Rating       float64 `json:"rating"`
	CommentCount int     `json:"comment_count"`
	Teacher      string  `json:"teacher,omitempty"`
}

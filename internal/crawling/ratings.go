package crawling

import (
	"github.com/jonathan/plan-auditor/internal/types"
)

// AggregateRatings folds reviews into one running-average rating per course
// id, in first-seen order. Reviews without a course id are ignored.
func AggregateRatings(reviews []types.Review) []types.CourseRating {
	return MergeRatings(nil, reviews)
}

// MergeRatings adds reviews to existing ratings without modifying them.
// An existing average over n comments absorbs a new rating r as
// (avg*n + r)/(n+1); courses not seen before are appended.
func MergeRatings(existing []types.CourseRating, reviews []types.Review) []types.CourseRating {
	merged := make([]types.CourseRating, 0, len(existing))
	index := make(map[string]int, len(existing))
	for _, c := range existing {
		c.Comments = append([]string(nil), c.Comments...)
		index[c.CourseID] = len(merged)
		merged = append(merged, c)
	}

	for _, r := range reviews {
		id := string(r.Course.ID)
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			index[id] = len(merged)
			merged = append(merged, types.CourseRating{
				CourseID:   id,
				CourseName: r.Course.Name,
				Teacher:    r.Course.Teacher,
				Comments:   []string{},
			})
			i = len(merged) - 1
		}

		c := &merged[i]
		n := float64(c.CommentCount)
		if c.CommentCount == 0 {
			c.Rating = r.Rating
		} else {
			c.Rating = (c.Rating*n + r.Rating) / (n + 1)
		}
		c.CommentCount++
		c.Comments = append(c.Comments, r.Comment)
		if c.CourseName == "" {
			c.CourseName = r.Course.Name
		}
		if c.Teacher == "" {
			c.Teacher = r.Course.Teacher
		}
	}
	return merged
}

// BuildRatingSet aggregates a full crawl into a rating set.
func BuildRatingSet(result *CrawlResult) *types.RatingSet {
	if result == nil {
		return &types.RatingSet{Courses: []types.CourseRating{}}
	}
	return &types.RatingSet{
		Courses:    AggregateRatings(result.Reviews),
		TotalCount: result.RemoteCount,
	}
}

package ranking

import "github.com/jonathan/plan-auditor/internal/types"

// AnnotateRatings returns a copy of recs where every suggested course that
// has a rating in set carries a rating note.
func AnnotateRatings(recs []types.Recommendation, set *types.RatingSet) []types.Recommendation {
	out := make([]types.Recommendation, len(recs))
	for i, rec := range recs {
		out[i] = rec
		out[i].Suggestions = make([]types.Suggestion, len(rec.Suggestions))
		for j, s := range rec.Suggestions {
			courses := make([]types.CourseRef, len(s.Courses))
			for k, c := range s.Courses {
				courses[k] = c
				if r, ok := set.Lookup(c.CourseID, c.CourseName); ok {
					courses[k].Rating = &types.RatingNote{
						Rating:       r.Rating,
						CommentCount: r.CommentCount,
						Teacher:      r.Teacher,
					}
				}
			}
			s.Courses = courses
			out[i].Suggestions[j] = s
		}
	}
	return out
}
